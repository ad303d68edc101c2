package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"gorm.io/gorm"

	"github.com/azizhankaya/thiscrow/internal/v1/metrics"
	"github.com/azizhankaya/thiscrow/internal/v1/types"
)

// Sentinel errors mapped onto the error taxonomy (§7) by httpapi handlers.
var (
	ErrConflict = errors.New("store: conflict")
	ErrNotFound = errors.New("store: not found")
)

// AddFriendOutcome tags whether add_friend created a pending request or
// completed a mutual friendship.
type AddFriendOutcome string

const (
	OutcomeRequest AddFriendOutcome = "friend_request_sent"
	OutcomeAdded   AddFriendOutcome = "friend_added"
)

// Store is the relational adapter: GORM over SQLite, wrapped in a
// circuit breaker so a degraded database fails queries fast instead of
// piling up blocked Control Session goroutines.
type Store struct {
	db *gorm.DB
	cb *gobreaker.CircuitBreaker
}

// Open connects to the SQLite database at dsn (a file path, or
// "file::memory:?cache=shared" for tests) and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "store",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("store").Set(stateVal)
		},
	}

	return &Store{db: db, cb: gobreaker.NewCircuitBreaker(st)}, nil
}

// Ping satisfies health.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) guarded(fn func() (any, error)) (any, error) {
	return s.cb.Execute(fn)
}

// Register creates a new account. Returns ErrConflict if the username or
// email is already taken.
func (s *Store) Register(username, name, email, passwordHash string) (*Account, error) {
	res, err := s.guarded(func() (any, error) {
		var count int64
		if err := s.db.Model(&Account{}).
			Where("username = ? OR email = ?", username, email).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, ErrConflict
		}

		account := &Account{
			ID:           uuid.New(),
			Name:         name,
			Username:     username,
			Email:        email,
			PasswordHash: passwordHash,
			CreatedAt:    time.Now().UTC(),
		}
		if err := s.db.Create(account).Error; err != nil {
			return nil, err
		}
		return account, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*Account), nil
}

// HasRegistered reports whether an account with this username or email
// already exists.
func (s *Store) HasRegistered(username, email string) (bool, error) {
	res, err := s.guarded(func() (any, error) {
		var count int64
		err := s.db.Model(&Account{}).
			Where("username = ? OR email = ?", username, email).
			Count(&count).Error
		return count > 0, err
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

// GetUserByUsername looks up an account by username for the login flow.
func (s *Store) GetUserByUsername(username string) (*Account, error) {
	res, err := s.guarded(func() (any, error) {
		var account Account
		err := s.db.Where("username = ?", username).First(&account).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return &account, err
	})
	if err != nil {
		return nil, err
	}
	return res.(*Account), nil
}

// GetUser looks up an account by id.
func (s *Store) GetUser(id uuid.UUID) (*Account, error) {
	res, err := s.guarded(func() (any, error) {
		var account Account
		err := s.db.Where("id = ?", id).First(&account).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return &account, err
	})
	if err != nil {
		return nil, err
	}
	return res.(*Account), nil
}

// GetUsersLike returns up to 10 accounts whose username starts with prefix.
func (s *Store) GetUsersLike(prefix string) ([]Account, error) {
	res, err := s.guarded(func() (any, error) {
		var accounts []Account
		err := s.db.Where("username LIKE ?", prefix+"%").Limit(10).Find(&accounts).Error
		return accounts, err
	})
	if err != nil {
		return nil, err
	}
	return res.([]Account), nil
}

func normalizePair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() < b.String() {
		return a, b
	}
	return b, a
}

// AreFriends reports whether a and b already have a friendship row.
func (s *Store) AreFriends(a, b uuid.UUID) (bool, error) {
	u1, u2 := normalizePair(a, b)
	res, err := s.guarded(func() (any, error) {
		var count int64
		err := s.db.Model(&Friend{}).
			Where("user1_id = ? AND user2_id = ?", u1, u2).
			Count(&count).Error
		return count > 0, err
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

// GetFriends returns the accounts friended with id.
func (s *Store) GetFriends(id uuid.UUID) ([]Account, error) {
	res, err := s.guarded(func() (any, error) {
		var friends []Friend
		if err := s.db.Where("user1_id = ? OR user2_id = ?", id, id).Find(&friends).Error; err != nil {
			return nil, err
		}

		ids := make([]uuid.UUID, 0, len(friends))
		for _, f := range friends {
			if f.User1ID == id {
				ids = append(ids, f.User2ID)
			} else {
				ids = append(ids, f.User1ID)
			}
		}
		if len(ids) == 0 {
			return []Account{}, nil
		}

		var accounts []Account
		err := s.db.Where("id IN ?", ids).Find(&accounts).Error
		return accounts, err
	})
	if err != nil {
		return nil, err
	}
	return res.([]Account), nil
}

// AddFriend implements the directed-request/mutual-friendship transition
// described in invariant 4: a first call records a pending request; the
// reverse call consumes it and creates the friendship row atomically.
func (s *Store) AddFriend(from, to uuid.UUID) (AddFriendOutcome, error) {
	res, err := s.guarded(func() (any, error) {
		var outcome AddFriendOutcome

		txErr := s.db.Transaction(func(tx *gorm.DB) error {
			var reverse FriendRequest
			err := tx.Where("from_id = ? AND to_id = ?", to, from).First(&reverse).Error
			switch {
			case err == nil:
				u1, u2 := normalizePair(from, to)
				if err := tx.Create(&Friend{User1ID: u1, User2ID: u2, CreatedAt: time.Now().UTC()}).Error; err != nil {
					return err
				}
				if err := tx.Where("from_id = ? AND to_id = ?", to, from).Delete(&FriendRequest{}).Error; err != nil {
					return err
				}
				if err := tx.Where("from_id = ? AND to_id = ?", from, to).Delete(&FriendRequest{}).Error; err != nil {
					return err
				}
				outcome = OutcomeAdded
				return nil
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Where("from_id = ? AND to_id = ?", from, to).
					FirstOrCreate(&FriendRequest{FromID: from, ToID: to, CreatedAt: time.Now().UTC()}).Error; err != nil {
					return err
				}
				outcome = OutcomeRequest
				return nil
			default:
				return err
			}
		})
		return outcome, txErr
	})
	if err != nil {
		return "", err
	}
	return res.(AddFriendOutcome), nil
}

// GetGroups returns the groups a user belongs to.
func (s *Store) GetGroups(user uuid.UUID) ([]Group, error) {
	res, err := s.guarded(func() (any, error) {
		var memberships []GroupMember
		if err := s.db.Where("user_id = ?", user).Find(&memberships).Error; err != nil {
			return nil, err
		}
		if len(memberships) == 0 {
			return []Group{}, nil
		}

		groupIDs := make([]uuid.UUID, len(memberships))
		for i, m := range memberships {
			groupIDs[i] = m.GroupID
		}

		var groups []Group
		err := s.db.Where("id IN ?", groupIDs).Find(&groups).Error
		return groups, err
	})
	if err != nil {
		return nil, err
	}
	return res.([]Group), nil
}

// InGroup reports whether user belongs to group.
func (s *Store) InGroup(user, group uuid.UUID) (bool, error) {
	res, err := s.guarded(func() (any, error) {
		var count int64
		err := s.db.Model(&GroupMember{}).
			Where("group_id = ? AND user_id = ?", group, user).
			Count(&count).Error
		return count > 0, err
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

// GetGroupUsers returns the member ids of a group.
func (s *Store) GetGroupUsers(group uuid.UUID) ([]uuid.UUID, error) {
	res, err := s.guarded(func() (any, error) {
		var members []GroupMember
		if err := s.db.Where("group_id = ?", group).Find(&members).Error; err != nil {
			return nil, err
		}
		ids := make([]uuid.UUID, len(members))
		for i, m := range members {
			ids[i] = m.UserID
		}
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]uuid.UUID), nil
}

// GetMessages returns up to length messages between a and b, strictly
// before the before cutoff, ordered ascending by time.
func (s *Store) GetMessages(a, b uuid.UUID, length int, before time.Time) ([]types.Message, error) {
	res, err := s.guarded(func() (any, error) {
		var records []MessageRecord
		err := s.db.
			Where("((from_id = ? AND to_id = ?) OR (from_id = ? AND to_id = ?)) AND created_at < ?", a, b, b, a, before).
			Order("created_at ASC").
			Limit(length).
			Find(&records).Error
		if err != nil {
			return nil, err
		}

		messages := make([]types.Message, 0, len(records))
		for _, r := range records {
			var data any
			if err := json.Unmarshal([]byte(r.Data), &data); err != nil {
				data = r.Data
			}
			messages = append(messages, types.Message{
				ID:    r.ID,
				From:  r.FromID,
				To:    r.ToID,
				Data:  data,
				Time:  r.CreatedAt,
				Class: types.MessageClass(r.Class),
			})
		}
		return messages, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]types.Message), nil
}

// SaveMessage persists a Direct or Group message.
func (s *Store) SaveMessage(msg types.Message) error {
	data, err := json.Marshal(msg.Data)
	if err != nil {
		return fmt.Errorf("failed to encode message data: %w", err)
	}

	_, err = s.guarded(func() (any, error) {
		record := MessageRecord{
			ID:        msg.ID,
			FromID:    msg.From,
			ToID:      msg.To,
			Data:      string(data),
			Class:     string(msg.Class),
			CreatedAt: msg.Time,
		}
		return nil, s.db.Create(&record).Error
	})
	return err
}
