package main

import (
	"fmt"

	"repartos/internal/dto"
	"repartos/internal/liquidacion"
	"repartos/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a tenant with an administrator and the legacy-slot products",
	Example: `  admin seed --empresa "Soderia Norte" --plan business \
    --username admin --password 'cambiar123' --stock 40`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().String("empresa", "Demo", "Tenant name")
	seedCmd.Flags().String("plan", model.PlanIndividual, "individual | business | enterprise")
	seedCmd.Flags().String("username", "admin", "Administrator username")
	seedCmd.Flags().String("password", "", "Administrator password (min 8 chars)")
	seedCmd.Flags().Int("stock", 0, "Initial vehicle stock for each seeded product")
	_ = seedCmd.MarkFlagRequired("password")
}

// seedProductos are created with their legacy slot so older deliveries map
// onto them during reconciliation.
var seedProductos = []struct {
	nombre string
	precio int64
	slot   liquidacion.Slot
}{
	{"Soda 2L", 50, liquidacion.SlotSodas},
	{"Bidon 10L", 30, liquidacion.SlotBidones10},
	{"Bidon 20L", 45, liquidacion.SlotBidones20},
}

func runSeed(cmd *cobra.Command, _ []string) error {
	empresa, _ := cmd.Flags().GetString("empresa")
	plan, _ := cmd.Flags().GetString("plan")
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	stock, _ := cmd.Flags().GetInt("stock")

	maxUsuarios, ok := model.MaxUsuariosPorPlan[plan]
	if !ok {
		return fmt.Errorf("plan desconocido %q", plan)
	}
	if stock < 0 {
		return fmt.Errorf("stock must be >= 0")
	}

	_, deps, err := connect()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	tenant := &model.Tenant{ID: uuid.New(), Nombre: empresa, Plan: plan, MaxUsuarios: maxUsuarios, Activo: true}
	if err := deps.Tenants.Create(ctx, tenant); err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}

	user, err := deps.Auth.CrearUsuario(ctx, tenant.ID, dto.CrearUsuarioRequest{
		Username: username,
		Nombre:   "Administrador",
		Password: password,
		Rol:      "administrador",
	})
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	for _, p := range seedProductos {
		slot := string(p.slot)
		prod, err := deps.Productos.Crear(ctx, tenant.ID, dto.CrearProductoRequest{
			Nombre:         p.nombre,
			PrecioUnitario: decimal.NewFromInt(p.precio),
			Stock:          stock,
			SlotLegacy:     &slot,
		})
		if err != nil {
			return fmt.Errorf("create producto %s: %w", p.nombre, err)
		}
		if stock > 0 {
			productoID := uuid.MustParse(prod.ID)
			cantidad := stock
			if _, err := deps.Inventario.Ajustar(ctx, tenant.ID, productoID, dto.AjustarStockRequest{
				Cantidad: &cantidad,
				Motivo:   "carga inicial",
			}); err != nil {
				return fmt.Errorf("stock inicial %s: %w", p.nombre, err)
			}
		}
	}

	log.Info().
		Str("tenant_id", tenant.ID.String()).
		Str("plan", plan).
		Str("admin", user.Username).
		Msg("seed: tenant created")
	fmt.Fprintf(cmd.OutOrStdout(), "tenant_id=%s admin=%s\n", tenant.ID, user.Username)
	return nil
}
