package router

import (
	"repartos/internal/config"
	"repartos/internal/handler"
	"repartos/internal/infra"
	"repartos/internal/middleware"
	"repartos/internal/repository"
	"repartos/internal/service"
	"repartos/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	rolRepartidor    = "repartidor"
	rolSupervisor    = "supervisor"
	rolAdministrador = "administrador"
)

// Deps is the wired dependency graph shared by the HTTP server and the
// background workers: Service ← Repository ← DB/Redis.
type Deps struct {
	DB  *gorm.DB
	RDB *redis.Client

	Tenants    repository.TenantRepository
	Eventos    repository.EventoRepository
	Dispatcher *worker.Dispatcher
	DLQ        *worker.RedisDLQ
	CB         *infra.CircuitBreaker
	Limiters   *middleware.Limiters

	Auth         service.AuthService
	Productos    service.ProductoService
	Clientes     service.ClienteService
	Inventario   service.InventarioService
	Entregas     service.EntregaService
	Conciliacion service.ConciliacionService
}

// NewDeps builds repositories and services on top of db and rdb.
func NewDeps(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *Deps {
	// ── Infrastructure ───────────────────────────────────────────────────────
	tx := service.NewTransactor(db)
	cache := infra.NewRedisStockCache(rdb, cfg.InventarioCacheTTL)
	dispatcher := worker.NewDispatcher(rdb)

	// ── Repositories ─────────────────────────────────────────────────────────
	usuarioRepo := repository.NewUsuarioRepository(db)
	tenantRepo := repository.NewTenantRepository(db)
	productoRepo := repository.NewProductoRepository(db)
	clienteRepo := repository.NewClienteRepository(db)
	entregaRepo := repository.NewEntregaRepository(db)
	inventarioRepo := repository.NewInventarioRepository(db)
	movimientoRepo := repository.NewMovimientoStockRepository(db)
	conciliacionRepo := repository.NewConciliacionRepository(db)
	eventoRepo := repository.NewEventoRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	inventarioSvc := service.NewInventarioService(inventarioRepo, productoRepo, movimientoRepo, tx, cache, cfg.StockGuardEstricto)
	entregaSvc := service.NewEntregaService(service.EntregaRepos{
		Entregas:       entregaRepo,
		Clientes:       clienteRepo,
		Productos:      productoRepo,
		Conciliaciones: conciliacionRepo,
		Eventos:        eventoRepo,
	}, inventarioSvc, tx, dispatcher)
	conciliacionSvc := service.NewConciliacionService(service.ConciliacionRepos{
		Entregas:       entregaRepo,
		Clientes:       clienteRepo,
		Productos:      productoRepo,
		Conciliaciones: conciliacionRepo,
		Inventario:     inventarioRepo,
		Movimientos:    movimientoRepo,
	}, tx, cache)

	return &Deps{
		DB:         db,
		RDB:        rdb,
		Tenants:    tenantRepo,
		Eventos:    eventoRepo,
		Dispatcher: dispatcher,
		DLQ:        worker.NewRedisDLQ(rdb),
		CB:         infra.NewCircuitBreaker(infra.DefaultCBConfig()),
		Limiters:   middleware.NewLimiters(cfg.RateLimitPerMinute),

		Auth:         service.NewAuthService(usuarioRepo, tenantRepo, tx, cfg),
		Productos:    service.NewProductoService(productoRepo),
		Clientes:     service.NewClienteService(clienteRepo),
		Inventario:   inventarioSvc,
		Entregas:     entregaSvc,
		Conciliacion: conciliacionSvc,
	}
}

// New returns a configured Gin engine serving the API.
func New(cfg *config.Config, d *Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(d.Limiters.API())

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(d.Auth)
	usuariosH := handler.NewUsuariosHandler(d.Auth)
	productosH := handler.NewProductosHandler(d.Productos)
	clientesH := handler.NewClientesHandler(d.Clientes)
	inventarioH := handler.NewInventarioHandler(d.Inventario)
	entregasH := handler.NewEntregasHandler(d.Entregas)
	conciliacionH := handler.NewConciliacionHandler(d.Conciliacion, d.DLQ)

	// ── Routes ───────────────────────────────────────────────────────────────

	r.GET("/health", handler.Health(d.DB, d.RDB, d.CB))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", d.Limiters.Login(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	todos := middleware.RequireRole(rolRepartidor, rolSupervisor, rolAdministrador)
	supervision := middleware.RequireRole(rolSupervisor, rolAdministrador)
	admin := middleware.RequireRole(rolAdministrador)

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret), middleware.RequireTenantActivo(d.Tenants))
	{
		entregas := v1.Group("/entregas")
		{
			entregas.POST("", todos, entregasH.Registrar)
			entregas.GET("", todos, entregasH.Listar)
			entregas.GET("/:id", todos, entregasH.Obtener)
			entregas.GET("/:id/conciliacion", supervision, conciliacionH.Estado)
			entregas.POST("/:id/conciliar", supervision, conciliacionH.Conciliar)
		}

		clientes := v1.Group("/clientes")
		{
			clientes.GET("", todos, clientesH.Listar)
			clientes.POST("", todos, clientesH.Crear)
			clientes.GET("/:id", todos, clientesH.ObtenerPorID)
			clientes.GET("/:id/saldo", todos, clientesH.Saldo)
		}

		v1.GET("/productos", todos, productosH.Listar)
		prods := v1.Group("/productos", admin)
		{
			prods.POST("", productosH.Crear)
			prods.PUT("/:id", productosH.Actualizar)
		}

		inv := v1.Group("/inventario")
		{
			inv.GET("", todos, inventarioH.Snapshot)
			inv.GET("/movimientos", supervision, inventarioH.Movimientos)
			inv.GET("/:producto_id/disponible", todos, inventarioH.Disponible)
			inv.PUT("/:producto_id", supervision, inventarioH.Ajustar)
		}

		usuarios := v1.Group("/usuarios", admin)
		{
			usuarios.POST("", usuariosH.Crear)
			usuarios.GET("", usuariosH.Listar)
		}

		v1.GET("/conciliacion/dlq", admin, conciliacionH.DLQ)
	}

	// Swagger UI, only outside production
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
