package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists   = errors.New("operator already exists")
	ErrInvalidCreds = errors.New("invalid credentials")
)

// Service registers and authenticates operators against the operators table.
type Service struct {
	db     *pgxpool.Pool
	tokens *Tokens
	log    *zap.Logger
}

func NewService(db *pgxpool.Pool, tokens *Tokens, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, tokens: tokens, log: log}
}

func (s *Service) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing failed: %w", err)
	}

	var op Operator
	err = s.db.QueryRow(ctx, `
		INSERT INTO operators (email, password_hash)
		VALUES ($1, $2)
		ON CONFLICT (email) DO NOTHING
		RETURNING id, email, created_at
	`, req.Email, string(hash)).Scan(&op.ID, &op.Email, &op.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserExists
	}
	if err != nil {
		return nil, fmt.Errorf("insert operator: %w", err)
	}

	token, err := s.tokens.Issue(op.ID)
	if err != nil {
		return nil, err
	}
	s.log.Info("operator registered", zap.String("operator", op.ID.String()))
	return &AuthResponse{Token: token, Operator: op}, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var op Operator
	err := s.db.QueryRow(ctx, "SELECT id, email, password_hash, created_at FROM operators WHERE email = $1", normalizeEmail(req.Email)).Scan(
		&op.ID, &op.Email, &op.PasswordHash, &op.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidCreds
	}
	if err != nil {
		return nil, fmt.Errorf("load operator: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCreds
	}

	token, err := s.tokens.Issue(op.ID)
	if err != nil {
		return nil, err
	}
	op.PasswordHash = ""
	return &AuthResponse{Token: token, Operator: op}, nil
}
