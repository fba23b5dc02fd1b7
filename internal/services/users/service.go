package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/4kciclone/gato-comics-sub000/internal/domain/enums"
	"github.com/4kciclone/gato-comics-sub000/internal/domain/model"
	"github.com/4kciclone/gato-comics-sub000/internal/domain/rules"
	pgrepo "github.com/4kciclone/gato-comics-sub000/internal/repo/postgres"
	authsvc "github.com/4kciclone/gato-comics-sub000/internal/services/auth"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrUsernameTaken = errors.New("username already taken")
	ErrUserNotFound  = errors.New("user not found")
)

const minPasswordLen = 8

type UserStore interface {
	Create(ctx context.Context, tx pgx.Tx, username, passwordHash, role string) (pgrepo.UserRecord, error)
	FindByUsername(ctx context.Context, username string) (pgrepo.UserRecord, error)
	FindByID(ctx context.Context, userID int64) (pgrepo.UserRecord, error)
}

type WalletStore interface {
	Create(ctx context.Context, tx pgx.Tx, userID, signupBonus int64) (pgrepo.WalletRecord, error)
}

type LedgerStore interface {
	Append(ctx context.Context, tx pgx.Tx, entry pgrepo.LedgerEntryRecord) (pgrepo.LedgerEntryRecord, error)
}

type Config struct {
	SignupBonus int64
}

type Service struct {
	users   UserStore
	wallets WalletStore
	ledger  LedgerStore
	cfg     Config
	runTx   pgrepo.TxRunner
}

func NewService(run pgrepo.TxRunner, users UserStore, wallets WalletStore, ledger LedgerStore, cfg Config) *Service {
	if cfg.SignupBonus < 0 {
		cfg.SignupBonus = rules.SignupBonusPatinhas
	}

	return &Service{
		users:   users,
		wallets: wallets,
		ledger:  ledger,
		cfg:     cfg,
		runTx:   run,
	}
}

// Register creates the user, its wallet with the signup bonus, and the
// matching ledger entry in one transaction, so a wallet can never exist
// whose balance is unexplained by the ledger.
func (s *Service) Register(ctx context.Context, username, password string) (authsvc.AccountInfo, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || len(password) < minPasswordLen {
		return authsvc.AccountInfo{}, ErrValidation
	}
	if s.users == nil || s.wallets == nil || s.ledger == nil {
		return authsvc.AccountInfo{}, fmt.Errorf("users dependencies are not configured")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return authsvc.AccountInfo{}, fmt.Errorf("hash password: %w", err)
	}

	var created pgrepo.UserRecord
	err = s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		user, err := s.users.Create(txCtx, tx, username, string(hash), string(enums.RoleUser))
		if err != nil {
			return err
		}

		if _, err := s.wallets.Create(txCtx, tx, user.ID, s.cfg.SignupBonus); err != nil {
			return err
		}

		if s.cfg.SignupBonus > 0 {
			if _, err := s.ledger.Append(txCtx, tx, pgrepo.LedgerEntryRecord{
				UserID:      user.ID,
				Kind:        string(enums.LedgerKindSignupBonus),
				Currency:    string(enums.CurrencyPatinhas),
				Amount:      s.cfg.SignupBonus,
				Description: "signup bonus",
			}); err != nil {
				return err
			}
		}

		created = user
		return nil
	})
	if err != nil {
		if errors.Is(err, pgrepo.ErrUsernameTaken) {
			return authsvc.AccountInfo{}, ErrUsernameTaken
		}
		return authsvc.AccountInfo{}, err
	}

	return authsvc.AccountInfo{
		ID:       created.ID,
		Username: created.Username,
		Role:     created.Role,
	}, nil
}

func (s *Service) Authenticate(ctx context.Context, username, password string) (authsvc.AccountInfo, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return authsvc.AccountInfo{}, authsvc.ErrInvalidCredentials
	}
	if s.users == nil {
		return authsvc.AccountInfo{}, fmt.Errorf("user store is nil")
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return authsvc.AccountInfo{}, authsvc.ErrInvalidCredentials
		}
		return authsvc.AccountInfo{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return authsvc.AccountInfo{}, authsvc.ErrInvalidCredentials
	}

	return authsvc.AccountInfo{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role,
	}, nil
}

func (s *Service) GetByID(ctx context.Context, userID int64) (model.User, error) {
	if userID <= 0 {
		return model.User{}, ErrValidation
	}
	if s.users == nil {
		return model.User{}, fmt.Errorf("user store is nil")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}

	return model.User{
		ID:        user.ID,
		Username:  user.Username,
		Role:      enums.Role(user.Role),
		CreatedAt: user.CreatedAt,
	}, nil
}
