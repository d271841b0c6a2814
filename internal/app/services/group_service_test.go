package services

import (
	"context"
	"errors"
	"mime/multipart"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoria-app/memoria/internal/app/models"
	"github.com/memoria-app/memoria/internal/app/models/dto"
	"github.com/memoria-app/memoria/internal/pkg/apperrors"
	"github.com/memoria-app/memoria/internal/pkg/cache"
	"github.com/memoria-app/memoria/internal/pkg/realtime"
)

func testGroup(id, createdBy int64) *models.Group {
	// Fixed timestamps survive the JSON roundtrip through the cache
	created := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	return &models.Group{
		ID:             id,
		Name:           "Viagem 2024",
		AllowAllPhotos: true,
		CreatedBy:      createdBy,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

func newTestCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewFromClient(client), mr
}

func TestCreateGroup(t *testing.T) {
	groupRepo := &fakeGroupRepo{
		createWithOwnerFn: func(ctx context.Context, group *models.Group) error {
			group.ID = 42
			return nil
		},
	}
	publisher := &fakePublisher{}
	testCache, mr := newTestCache(t)
	mr.Set("groups:explore:limit=20", `{"groups":[]}`)

	svc := NewGroupService(groupRepo, &fakeMembershipRepo{}, &fakeProfileRepo{}, &fakeStorage{}, testCache, publisher, zerolog.Nop())

	resp, err := svc.Create(context.Background(), 7, &dto.CreateGroupRequest{
		Name:           "Viagem 2024",
		Description:    "Fotos da viagem",
		AllowAllPhotos: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), resp.GroupID)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, realtime.EventGroupCreated, publisher.events[0].eventType)
	assert.Equal(t, int64(42), publisher.events[0].groupID)
	assert.Equal(t, int64(7), publisher.events[0].actorID)

	// Cached explore pages are stale after a create
	assert.False(t, mr.Exists("groups:explore:limit=20"))
}

func TestJoinGroup(t *testing.T) {
	groupRepo := &fakeGroupRepo{
		getByIDFn: func(ctx context.Context, id int64) (*models.Group, error) {
			return testGroup(id, 1), nil
		},
	}

	t.Run("new member", func(t *testing.T) {
		var added *models.Membership
		membershipRepo := &fakeMembershipRepo{
			getByGroupAndUserFn: func(ctx context.Context, groupID, userID int64) (*models.Membership, error) {
				return nil, apperrors.ErrNotGroupMember
			},
			addFn: func(ctx context.Context, membership *models.Membership) error {
				added = membership
				return nil
			},
		}
		publisher := &fakePublisher{}
		svc := NewGroupService(groupRepo, membershipRepo, &fakeProfileRepo{}, &fakeStorage{}, nil, publisher, zerolog.Nop())

		resp, err := svc.Join(context.Background(), 5, 9)
		require.NoError(t, err)
		assert.False(t, resp.AlreadyJoined)
		assert.Equal(t, string(models.RoleMember), resp.Role)

		require.NotNil(t, added)
		assert.Equal(t, models.RoleMember, added.Role)

		require.Len(t, publisher.events, 1)
		assert.Equal(t, realtime.EventMemberJoined, publisher.events[0].eventType)
	})

	t.Run("already a member", func(t *testing.T) {
		membershipRepo := &fakeMembershipRepo{
			getByGroupAndUserFn: func(ctx context.Context, groupID, userID int64) (*models.Membership, error) {
				return &models.Membership{GroupID: groupID, UserID: userID, Role: models.RoleMember}, nil
			},
			addFn: func(ctx context.Context, membership *models.Membership) error {
				t.Fatal("Add must not be called for an existing member")
				return nil
			},
		}
		publisher := &fakePublisher{}
		svc := NewGroupService(groupRepo, membershipRepo, &fakeProfileRepo{}, &fakeStorage{}, nil, publisher, zerolog.Nop())

		resp, err := svc.Join(context.Background(), 5, 9)
		require.NoError(t, err)
		assert.True(t, resp.AlreadyJoined)
		assert.Empty(t, publisher.events)
	})

	t.Run("concurrent insert race", func(t *testing.T) {
		membershipRepo := &fakeMembershipRepo{
			getByGroupAndUserFn: func(ctx context.Context, groupID, userID int64) (*models.Membership, error) {
				return nil, apperrors.ErrNotGroupMember
			},
			addFn: func(ctx context.Context, membership *models.Membership) error {
				return apperrors.ErrResourceAlreadyExists
			},
		}
		svc := NewGroupService(groupRepo, membershipRepo, &fakeProfileRepo{}, &fakeStorage{}, nil, nil, zerolog.Nop())

		resp, err := svc.Join(context.Background(), 5, 9)
		require.NoError(t, err)
		assert.True(t, resp.AlreadyJoined)
	})

	t.Run("unknown group", func(t *testing.T) {
		missingRepo := &fakeGroupRepo{
			getByIDFn: func(ctx context.Context, id int64) (*models.Group, error) {
				return nil, apperrors.ErrGroupNotFound
			},
		}
		svc := NewGroupService(missingRepo, &fakeMembershipRepo{}, &fakeProfileRepo{}, &fakeStorage{}, nil, nil, zerolog.Nop())

		_, err := svc.Join(context.Background(), 404, 9)
		assert.ErrorIs(t, err, apperrors.ErrGroupNotFound)
	})
}

func TestLeaveGroup(t *testing.T) {
	membershipRepo := &fakeMembershipRepo{
		removeFn: func(ctx context.Context, groupID, userID int64) error {
			return nil
		},
	}
	publisher := &fakePublisher{}
	svc := NewGroupService(&fakeGroupRepo{}, membershipRepo, &fakeProfileRepo{}, &fakeStorage{}, nil, publisher, zerolog.Nop())

	require.NoError(t, svc.Leave(context.Background(), 5, 9))
	require.Len(t, publisher.events, 1)
	assert.Equal(t, realtime.EventMemberLeft, publisher.events[0].eventType)
}

func TestLeaveGroup_NotMember(t *testing.T) {
	membershipRepo := &fakeMembershipRepo{
		removeFn: func(ctx context.Context, groupID, userID int64) error {
			return apperrors.ErrNotGroupMember
		},
	}
	svc := NewGroupService(&fakeGroupRepo{}, membershipRepo, &fakeProfileRepo{}, &fakeStorage{}, nil, nil, zerolog.Nop())

	err := svc.Leave(context.Background(), 5, 9)
	assert.ErrorIs(t, err, apperrors.ErrNotGroupMember)
}

func TestGetGroup_RestoresOwnerMembership(t *testing.T) {
	group := testGroup(5, 9)
	groupRepo := &fakeGroupRepo{
		getByIDFn: func(ctx context.Context, id int64) (*models.Group, error) {
			return group, nil
		},
	}

	var restored *models.Membership
	membershipRepo := &fakeMembershipRepo{
		getByGroupAndUserFn: func(ctx context.Context, groupID, userID int64) (*models.Membership, error) {
			return nil, apperrors.ErrNotGroupMember
		},
		addFn: func(ctx context.Context, membership *models.Membership) error {
			restored = membership
			return nil
		},
		countByGroupIDsFn: func(ctx context.Context, groupIDs []int64) (map[int64]int, error) {
			return map[int64]int{5: 3}, nil
		},
	}

	svc := NewGroupService(groupRepo, membershipRepo, &fakeProfileRepo{}, &fakeStorage{}, nil, nil, zerolog.Nop())

	resp, err := svc.Get(context.Background(), 5, 9)
	require.NoError(t, err)

	require.NotNil(t, restored)
	assert.Equal(t, models.RoleOwner, restored.Role)
	assert.Equal(t, "owner", resp.Viewer.Role)
	assert.Equal(t, 3, resp.MemberCount)
}

func TestGetGroup_NonMemberViewer(t *testing.T) {
	groupRepo := &fakeGroupRepo{
		getByIDFn: func(ctx context.Context, id int64) (*models.Group, error) {
			return testGroup(id, 1), nil
		},
	}
	membershipRepo := &fakeMembershipRepo{
		getByGroupAndUserFn: func(ctx context.Context, groupID, userID int64) (*models.Membership, error) {
			return nil, apperrors.ErrNotGroupMember
		},
		addFn: func(ctx context.Context, membership *models.Membership) error {
			t.Fatal("a non-creator viewer must not gain a membership row")
			return nil
		},
	}

	svc := NewGroupService(groupRepo, membershipRepo, &fakeProfileRepo{}, &fakeStorage{}, nil, nil, zerolog.Nop())

	resp, err := svc.Get(context.Background(), 5, 99)
	require.NoError(t, err)
	assert.Equal(t, "none", resp.Viewer.Role)
	assert.Nil(t, resp.Viewer.JoinedAt)
}

func TestUpdateGroup_NotOwner(t *testing.T) {
	groupRepo := &fakeGroupRepo{
		getByIDFn: func(ctx context.Context, id int64) (*models.Group, error) {
			return testGroup(id, 1), nil
		},
	}
	svc := NewGroupService(groupRepo, &fakeMembershipRepo{}, &fakeProfileRepo{}, &fakeStorage{}, nil, nil, zerolog.Nop())

	_, err := svc.Update(context.Background(), 5, 99, &dto.UpdateGroupRequest{Name: "Novo nome"})
	assert.ErrorIs(t, err, apperrors.ErrNotGroupOwner)
}

func TestExplore_CachesUnfilteredPages(t *testing.T) {
	calls := 0
	groupRepo := &fakeGroupRepo{
		listPublicFn: func(ctx context.Context, search *string, limit int) ([]*models.Group, error) {
			calls++
			return []*models.Group{testGroup(5, 9)}, nil
		},
	}
	profileRepo := &fakeProfileRepo{
		getByUserIDsFn: func(ctx context.Context, userIDs []int64) (map[int64]*models.Profile, error) {
			return map[int64]*models.Profile{9: {UserID: 9, Name: "Ana"}}, nil
		},
	}
	membershipRepo := &fakeMembershipRepo{
		countByGroupIDsFn: func(ctx context.Context, groupIDs []int64) (map[int64]int, error) {
			return map[int64]int{5: 4}, nil
		},
	}
	testCache, _ := newTestCache(t)

	svc := NewGroupService(groupRepo, membershipRepo, profileRepo, &fakeStorage{}, testCache, nil, zerolog.Nop())

	first, err := svc.Explore(context.Background(), &dto.ExploreFilterRequest{Limit: 20})
	require.NoError(t, err)
	require.Len(t, first.Groups, 1)
	assert.Equal(t, "Ana", first.Groups[0].OwnerName)
	assert.Equal(t, 4, first.Groups[0].MemberCount)

	second, err := svc.Explore(context.Background(), &dto.ExploreFilterRequest{Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, first.Groups, second.Groups)
	assert.Equal(t, 1, calls, "second unfiltered page must come from cache")
}

func TestExplore_SearchBypassesCache(t *testing.T) {
	calls := 0
	search := "viagem"
	groupRepo := &fakeGroupRepo{
		listPublicFn: func(ctx context.Context, gotSearch *string, limit int) ([]*models.Group, error) {
			calls++
			require.NotNil(t, gotSearch)
			assert.Equal(t, search, *gotSearch)
			return nil, nil
		},
	}
	testCache, _ := newTestCache(t)
	svc := NewGroupService(groupRepo, &fakeMembershipRepo{}, &fakeProfileRepo{}, &fakeStorage{}, testCache, nil, zerolog.Nop())

	for i := 0; i < 2; i++ {
		_, err := svc.Explore(context.Background(), &dto.ExploreFilterRequest{Search: &search, Limit: 20})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}

func TestExplore_LimitClamped(t *testing.T) {
	groupRepo := &fakeGroupRepo{
		listPublicFn: func(ctx context.Context, search *string, limit int) ([]*models.Group, error) {
			assert.Equal(t, 50, limit)
			return nil, nil
		},
	}
	svc := NewGroupService(groupRepo, &fakeMembershipRepo{}, &fakeProfileRepo{}, &fakeStorage{}, nil, nil, zerolog.Nop())

	_, err := svc.Explore(context.Background(), &dto.ExploreFilterRequest{Limit: 500})
	require.NoError(t, err)
}

func TestListMine(t *testing.T) {
	groupRepo := &fakeGroupRepo{
		listByUserFn: func(ctx context.Context, userID int64) ([]*models.Group, error) {
			assert.Equal(t, int64(9), userID)
			return []*models.Group{testGroup(2, 9), testGroup(1, 4)}, nil
		},
	}
	svc := NewGroupService(groupRepo, &fakeMembershipRepo{}, &fakeProfileRepo{}, &fakeStorage{}, nil, nil, zerolog.Nop())

	resp, err := svc.ListMine(context.Background(), 9)
	require.NoError(t, err)

	require.Len(t, resp.Groups, 2)
	assert.Equal(t, int64(2), resp.Groups[0].ID)
	assert.Equal(t, int64(1), resp.Groups[1].ID)
}

func TestUpdateCover_MembershipCheckFailure(t *testing.T) {
	groupRepo := &fakeGroupRepo{
		getByIDFn: func(ctx context.Context, id int64) (*models.Group, error) {
			return testGroup(id, 9), nil
		},
	}
	checkErr := errors.New("connection reset")
	membershipRepo := &fakeMembershipRepo{
		getByGroupAndUserFn: func(ctx context.Context, groupID, userID int64) (*models.Membership, error) {
			return nil, checkErr
		},
	}
	storage := &fakeStorage{}
	svc := NewGroupService(groupRepo, membershipRepo, &fakeProfileRepo{}, storage, nil, nil, zerolog.Nop())

	_, err := svc.UpdateCover(context.Background(), 5, 9, &multipart.FileHeader{Filename: "cover.jpg"})
	assert.ErrorIs(t, err, checkErr)
	assert.Zero(t, storage.saves, "upload must not start when the membership check fails")
}

func TestMembershipChangesInvalidateExploreCache(t *testing.T) {
	groupRepo := &fakeGroupRepo{
		getByIDFn: func(ctx context.Context, id int64) (*models.Group, error) {
			return testGroup(id, 1), nil
		},
	}
	membershipRepo := &fakeMembershipRepo{
		getByGroupAndUserFn: func(ctx context.Context, groupID, userID int64) (*models.Membership, error) {
			return nil, apperrors.ErrNotGroupMember
		},
		addFn: func(ctx context.Context, membership *models.Membership) error {
			return nil
		},
		removeFn: func(ctx context.Context, groupID, userID int64) error {
			return nil
		},
	}
	testCache, mr := newTestCache(t)
	svc := NewGroupService(groupRepo, membershipRepo, &fakeProfileRepo{}, &fakeStorage{}, testCache, nil, zerolog.Nop())

	// Cached explore rows embed member counts, so join and leave both
	// have to drop them
	mr.Set("groups:explore:limit=20", `{"groups":[]}`)
	_, err := svc.Join(context.Background(), 5, 9)
	require.NoError(t, err)
	assert.False(t, mr.Exists("groups:explore:limit=20"))

	mr.Set("groups:explore:limit=20", `{"groups":[]}`)
	require.NoError(t, svc.Leave(context.Background(), 5, 9))
	assert.False(t, mr.Exists("groups:explore:limit=20"))
}

func TestListMembers(t *testing.T) {
	joined := time.Date(2026, 5, 11, 9, 0, 0, 0, time.UTC)
	groupRepo := &fakeGroupRepo{
		getByIDFn: func(ctx context.Context, id int64) (*models.Group, error) {
			return testGroup(id, 1), nil
		},
	}
	membershipRepo := &fakeMembershipRepo{
		listByGroupIDFn: func(ctx context.Context, groupID int64) ([]*models.Membership, error) {
			return []*models.Membership{
				{ID: 1, GroupID: groupID, UserID: 1, Role: models.RoleOwner, JoinedAt: joined},
				{ID: 2, GroupID: groupID, UserID: 9, Role: models.RoleMember, JoinedAt: joined.Add(time.Hour)},
			}, nil
		},
	}
	profileRepo := &fakeProfileRepo{
		getByUserIDsFn: func(ctx context.Context, userIDs []int64) (map[int64]*models.Profile, error) {
			assert.ElementsMatch(t, []int64{1, 9}, userIDs)
			return map[int64]*models.Profile{
				1: {UserID: 1, Name: "Ana", Username: "ana"},
				9: {UserID: 9, Name: "Bruno", Username: "bruno"},
			}, nil
		},
	}
	svc := NewGroupService(groupRepo, membershipRepo, profileRepo, &fakeStorage{}, nil, nil, zerolog.Nop())

	resp, err := svc.ListMembers(context.Background(), 5, 9)
	require.NoError(t, err)

	require.Len(t, resp.Members, 2)
	assert.Equal(t, "Ana", resp.Members[0].Name)
	assert.Equal(t, string(models.RoleOwner), resp.Members[0].Role)
	assert.Equal(t, "bruno", resp.Members[1].Username)
	assert.Equal(t, string(models.RoleMember), resp.Members[1].Role)
}

func TestListMembers_PrivateGroupNonMember(t *testing.T) {
	groupRepo := &fakeGroupRepo{
		getByIDFn: func(ctx context.Context, id int64) (*models.Group, error) {
			group := testGroup(id, 1)
			group.IsPrivate = true
			return group, nil
		},
	}
	membershipRepo := &fakeMembershipRepo{
		isMemberFn: func(ctx context.Context, groupID, userID int64) (bool, error) {
			return false, nil
		},
		listByGroupIDFn: func(ctx context.Context, groupID int64) ([]*models.Membership, error) {
			t.Fatal("the roster must not be read for a non-member")
			return nil, nil
		},
	}
	svc := NewGroupService(groupRepo, membershipRepo, &fakeProfileRepo{}, &fakeStorage{}, nil, nil, zerolog.Nop())

	_, err := svc.ListMembers(context.Background(), 5, 9)
	assert.ErrorIs(t, err, apperrors.ErrNotGroupMember)
}
