package repositories

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories holds all the repository instances
type Repositories struct {
	UserRepository              *UserRepository
	ProfileRepository           *ProfileRepository
	GroupRepository             *GroupRepository
	MembershipRepository        *MembershipRepository
	MemoryRepository            *MemoryRepository
	TokenRepository             *TokenRepository
	VerificationTokenRepository *VerificationTokenRepository
}

// NewRepositories initializes all repositories
func NewRepositories(db *pgxpool.Pool) *Repositories {
	return &Repositories{
		UserRepository:              NewUserRepository(db),
		ProfileRepository:           NewProfileRepository(db),
		GroupRepository:             NewGroupRepository(db),
		MembershipRepository:        NewMembershipRepository(db),
		MemoryRepository:            NewMemoryRepository(db),
		TokenRepository:             NewTokenRepository(db),
		VerificationTokenRepository: NewVerificationTokenRepository(db),
	}
}
