package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"chatnotify/internal/auth"
	"chatnotify/internal/config"
	"chatnotify/internal/model"
	"chatnotify/internal/repository"

	"gorm.io/gorm"
)

var ErrSigninFailed = errors.New("邮箱或密码错误")

// UserService 用户业务。密码散列由外部认证层完成，这里只存储
// 和比对散列值本身
type UserService struct {
	db       *gorm.DB
	cfg      *config.Config
	userRepo *repository.UserRepository
}

func NewUserService(db *gorm.DB, cfg *config.Config) *UserService {
	return &UserService{
		db:       db,
		cfg:      cfg,
		userRepo: repository.NewUserRepository(db),
	}
}

// Signup 注册用户
func (s *UserService) Signup(ctx context.Context, fullname, email, passwordHash string) (*model.User, error) {
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	if existing != nil {
		return nil, repository.ErrEmailTaken
	}

	user := &model.User{
		Fullname:     fullname,
		Email:        email,
		PasswordHash: passwordHash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}
	return user, nil
}

// Signin 登录，散列比对使用常数时间比较，成功后签发 JWT
func (s *UserService) Signin(ctx context.Context, email, passwordHash string) (string, *model.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("查询用户失败: %w", err)
	}
	if user == nil {
		return "", nil, ErrSigninFailed
	}
	if subtle.ConstantTimeCompare([]byte(user.PasswordHash), []byte(passwordHash)) != 1 {
		return "", nil, ErrSigninFailed
	}

	ttl := time.Duration(s.cfg.Auth.TokenTTLHours) * time.Hour
	token, err := auth.CreateToken(s.cfg.Auth.JWTSecret, ttl, user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("签发令牌失败: %w", err)
	}
	return token, user, nil
}

// GetByID 查询用户
func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.userRepo.GetByID(ctx, id)
}
