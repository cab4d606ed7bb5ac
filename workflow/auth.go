package workflow

import (
	"context"
	"errors"
	"strings"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type AuthService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewAuthService(db *gorm.DB, logger *logrus.Logger) *AuthService {
	return &AuthService{db: db, logger: logger}
}

// Login checks the credentials and returns a signed token. Wrong username,
// wrong password and disabled account all come back as the same validation
// error so the response does not leak which part failed.
func (s *AuthService) Login(ctx context.Context, username string, password string) (*models.LoginInfo, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, utils.ValidationErrorf("username and password are required")
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.ValidationErrorf("invalid username or password")
	}
	if err != nil {
		config.LogError(s.logger, "auth", "Login", "query", username, err)
		return nil, err
	}

	if user.IsActive == nil || !*user.IsActive {
		return nil, utils.ValidationErrorf("invalid username or password")
	}
	if err := utils.ComparePassword(user.Password, password); err != nil {
		return nil, utils.ValidationErrorf("invalid username or password")
	}

	token, err := utils.JwtGenerate(user.ID, user.Name, string(user.Role))
	if err != nil {
		config.LogError(s.logger, "auth", "Login", "token", username, err)
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"module":  "auth",
		"user_id": user.ID,
	}).Info("user logged in")

	return &models.LoginInfo{
		Token: token,
		Name:  user.Name,
		Role:  user.Role.DisplayName(),
	}, nil
}

// CreateUser registers a new account with a bcrypt-hashed password.
func (s *AuthService) CreateUser(ctx context.Context, input *models.NewUser) (*models.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	if input.Username == "" || input.Name == "" {
		return nil, utils.ValidationErrorf("username and name are required")
	}
	if len(input.Password) < 6 {
		return nil, utils.ValidationErrorf("password must be at least 6 characters")
	}
	role := input.Role
	if role == "" {
		role = models.UserRoleOperator
	}
	if role != models.UserRoleAdmin && role != models.UserRoleOperator {
		return nil, utils.ValidationErrorf("unknown role %q", role)
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	isActive := input.IsActive
	if isActive == nil {
		isActive = utils.NewTrue()
	}

	user := models.User{
		Username: input.Username,
		Name:     input.Name,
		Password: string(hashed),
		IsActive: isActive,
		Role:     role,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return nil, utils.ValidationErrorf("username %q already taken", input.Username)
		}
		config.LogError(s.logger, "auth", "CreateUser", "create", input.Username, err)
		return nil, err
	}
	return &user, nil
}
