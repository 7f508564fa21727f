package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"repartos/internal/config"
	"repartos/internal/dto"
	"repartos/internal/model"
	"repartos/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error)
	// CrearUsuario adds a user to the tenant, enforcing the plan's max_usuarios.
	CrearUsuario(ctx context.Context, tenantID uuid.UUID, req dto.CrearUsuarioRequest) (*dto.UsuarioResponse, error)
	ListarUsuarios(ctx context.Context, tenantID uuid.UUID) ([]dto.UsuarioResponse, error)
}

type authService struct {
	repo    repository.UsuarioRepository
	tenants repository.TenantRepository
	tx      Transactor
	cfg     *config.Config
}

func NewAuthService(repo repository.UsuarioRepository, tenants repository.TenantRepository, tx Transactor, cfg *config.Config) AuthService {
	return &authService{repo: repo, tenants: tenants, tx: tx, cfg: cfg}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.repo.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, ErrCredencialesInvalidas
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrCredencialesInvalidas
	}
	if err := s.tenantActivo(ctx, user.TenantID); err != nil {
		return nil, err
	}
	return s.emitir(user)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error) {
	token, err := jwt.Parse(refreshToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("refresh token invalido o expirado")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("claims invalidos")
	}
	userIDStr, ok := claims["user_id"].(string)
	if !ok {
		return nil, errors.New("token mal formado")
	}
	uid, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, errors.New("token mal formado")
	}

	user, err := s.repo.FindByID(ctx, uid)
	if err != nil || !user.Activo {
		return nil, errors.New("usuario no encontrado o inactivo")
	}
	if err := s.tenantActivo(ctx, user.TenantID); err != nil {
		return nil, err
	}
	return s.emitir(user)
}

func (s *authService) CrearUsuario(ctx context.Context, tenantID uuid.UUID, req dto.CrearUsuarioRequest) (*dto.UsuarioResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return nil, err
	}
	user := &model.Usuario{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Username:     req.Username,
		Nombre:       req.Nombre,
		Email:        req.Email,
		PasswordHash: string(hash),
		Rol:          req.Rol,
		Activo:       true,
	}

	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		t, err := s.tenants.FindByIDForUpdateTx(tx, tenantID)
		if err != nil {
			return notFoundOr(err, "tenant", tenantID, "bloquear tenant")
		}
		if !t.PuedeAgregarUsuario() {
			return &ValidationError{
				Campo:   "plan",
				Mensaje: fmt.Sprintf("el plan %s admite hasta %d usuarios", t.Plan, t.MaxUsuarios),
			}
		}
		if err := s.repo.CreateTx(tx, user); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &ValidationError{Campo: "username", Mensaje: "ya existe"}
			}
			return err
		}
		return s.tenants.IncrementarUsuariosTx(tx, tenantID)
	})
	if err != nil {
		return nil, passThrough(err, "crear usuario")
	}
	resp := usuarioToResponse(user)
	return &resp, nil
}

func (s *authService) ListarUsuarios(ctx context.Context, tenantID uuid.UUID) ([]dto.UsuarioResponse, error) {
	users, err := s.repo.List(ctx, tenantID)
	if err != nil {
		return nil, &PersistenceError{Op: "listar usuarios", Err: err}
	}
	resp := make([]dto.UsuarioResponse, len(users))
	for i := range users {
		resp[i] = usuarioToResponse(&users[i])
	}
	return resp, nil
}

func (s *authService) tenantActivo(ctx context.Context, tenantID uuid.UUID) error {
	t, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil || !t.Activo {
		return ErrTenantInactivo
	}
	return nil
}

func (s *authService) emitir(user *model.Usuario) (*dto.LoginResponse, error) {
	accessToken, err := s.generateToken(user, time.Duration(s.cfg.JWTExpirationHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.generateToken(user, time.Duration(s.cfg.JWTRefreshHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    s.cfg.JWTExpirationHours * 3600,
		User:         usuarioToResponse(user),
	}, nil
}

func (s *authService) generateToken(user *model.Usuario, duration time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id":   user.ID.String(),
		"tenant_id": user.TenantID.String(),
		"username":  user.Username,
		"rol":       user.Rol,
		"exp":       time.Now().Add(duration).Unix(),
		"iat":       time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func usuarioToResponse(u *model.Usuario) dto.UsuarioResponse {
	return dto.UsuarioResponse{
		ID:       u.ID.String(),
		TenantID: u.TenantID.String(),
		Username: u.Username,
		Nombre:   u.Nombre,
		Email:    u.Email,
		Rol:      u.Rol,
		Activo:   u.Activo,
	}
}
