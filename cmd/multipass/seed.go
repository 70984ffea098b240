package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/varela-dev/multipass/internal/observability/logger"
	"github.com/varela-dev/multipass/internal/security/password"
	"github.com/varela-dev/multipass/internal/security/token"
	"github.com/varela-dev/multipass/internal/store/core"
	"github.com/varela-dev/multipass/internal/store/pg"
	migrations "github.com/varela-dev/multipass/migrations/postgres"
)

// seed crea un tenant demo con su owner y un par de clients (confidencial y
// público) para probar los flujos a mano. Imprime las credenciales una vez.
func newSeedCmd(configPath *string) *cobra.Command {
	var (
		flagSlug     = "acme"
		flagName     = "Acme Corp"
		flagOwner    = "admin"
		flagEmail    = "admin@acme.test"
		flagPassword = ""
		flagRedirect = "http://localhost:3000/callback"
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Crea un tenant demo con owner y clients de prueba",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagPassword == "" {
				return errors.New("--password es requerido")
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			store, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			if pgStore, ok := store.(*pg.Store); ok {
				if err := pgStore.RunMigrations(ctx, migrations.FS); err != nil {
					return err
				}
			}

			return runSeed(ctx, store, seedParams{
				Slug:     flagSlug,
				Name:     flagName,
				Owner:    flagOwner,
				Email:    flagEmail,
				Password: flagPassword,
				Redirect: flagRedirect,
			})
		},
	}

	cmd.Flags().StringVar(&flagSlug, "slug", flagSlug, "slug del tenant")
	cmd.Flags().StringVar(&flagName, "name", flagName, "nombre del tenant")
	cmd.Flags().StringVar(&flagOwner, "owner", flagOwner, "username del owner")
	cmd.Flags().StringVar(&flagEmail, "email", flagEmail, "email del owner")
	cmd.Flags().StringVar(&flagPassword, "password", flagPassword, "password del owner (requerido)")
	cmd.Flags().StringVar(&flagRedirect, "redirect-uri", flagRedirect, "redirect URI de los clients demo")
	return cmd
}

type seedParams struct {
	Slug, Name, Owner, Email, Password, Redirect string
}

func runSeed(ctx context.Context, store core.Repository, p seedParams) error {
	hash, err := password.Hash(password.Default, p.Password)
	if err != nil {
		return err
	}

	t := &core.Tenant{
		Name:     p.Name,
		Slug:     p.Slug,
		IsActive: true,
		Plan:     "standard",
		MaxUsers: 100,
		Settings: map[string]any{},
	}
	owner := &core.User{
		Username:     p.Owner,
		Email:        p.Email,
		PasswordHash: hash,
		Role:         core.RoleOwner,
		IsActive:     true,
	}
	if err := store.CreateTenantWithOwner(ctx, t, owner); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return fmt.Errorf("tenant %q ya existe", p.Slug)
		}
		return err
	}

	confID, err := token.GenerateOpaqueToken(token.ClientIDBytes)
	if err != nil {
		return err
	}
	confSecret, err := token.GenerateOpaqueToken(token.ClientSecretBytes)
	if err != nil {
		return err
	}
	conf := &core.Client{
		TenantID:                t.ID,
		ClientID:                confID,
		ClientSecret:            &confSecret,
		Name:                    "Demo Web",
		RedirectURIs:            []string{p.Redirect},
		GrantTypes:              []string{"authorization_code", "refresh_token", "password", "client_credentials"},
		ResponseTypes:           []string{"code"},
		Scope:                   []string{"read", "write", "profile", "email"},
		TokenEndpointAuthMethod: "client_secret_basic",
		UserID:                  owner.ID,
	}
	if err := store.CreateClient(ctx, conf); err != nil {
		return err
	}

	pubID, err := token.GenerateOpaqueToken(token.ClientIDBytes)
	if err != nil {
		return err
	}
	pub := &core.Client{
		TenantID:                t.ID,
		ClientID:                pubID,
		Name:                    "Demo SPA",
		RedirectURIs:            []string{p.Redirect},
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		ResponseTypes:           []string{"code"},
		Scope:                   []string{"read", "profile"},
		TokenEndpointAuthMethod: "none",
		UserID:                  owner.ID,
	}
	if err := store.CreateClient(ctx, pub); err != nil {
		return err
	}

	fmt.Printf("tenant:        %s (%s)\n", t.Slug, t.ID)
	fmt.Printf("owner:         %s / %s\n", owner.Username, owner.Email)
	fmt.Printf("confidential:  client_id=%s\n", confID)
	fmt.Printf("               client_secret=%s\n", confSecret)
	fmt.Printf("public (SPA):  client_id=%s\n", pubID)
	return nil
}
