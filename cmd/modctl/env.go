package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ivankudzin/trustsafety/internal/app/core"
	"github.com/ivankudzin/trustsafety/internal/config"
	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
	"github.com/ivankudzin/trustsafety/internal/infra/logger"
	"github.com/ivankudzin/trustsafety/internal/repo"
	authsvc "github.com/ivankudzin/trustsafety/internal/services/auth"
)

const envKey = "env"

type env struct {
	cfg    config.Config
	log    *zap.Logger
	core   *core.Core
	mini   *miniredis.Miniredis
	memory bool
	out    io.Writer
}

func setupEnv(cctx *cli.Context) error {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return exitWith(faults.Validation("load config: %v", err))
	}
	log, err := logger.New(cctx.String("log-level"))
	if err != nil {
		return exitWith(faults.Validation("%v", err))
	}

	e := &env{cfg: cfg, log: log, memory: cctx.Bool("memory"), out: cctx.App.Writer}
	opts := core.Options{}
	if e.memory {
		mini, err := miniredis.Run()
		if err != nil {
			return exitWith(fmt.Errorf("start embedded redis: %w", err))
		}
		e.mini = mini
		opts.Store = core.MemoryStore(time.Now)
		opts.Redis = goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	}

	e.core, err = core.New(cctx.Context, cfg, log, opts)
	if err != nil {
		return exitWith(err)
	}
	if path := cctx.String("seed"); path != "" {
		if err := loadSeed(cctx.Context, e.core.Store, path); err != nil {
			return exitWith(err)
		}
	}

	cctx.App.Metadata = map[string]interface{}{envKey: e}
	return nil
}

func teardownEnv(cctx *cli.Context) error {
	e, ok := cctx.App.Metadata[envKey].(*env)
	if !ok {
		return nil
	}
	_ = e.core.Close()
	if e.mini != nil {
		e.mini.Close()
	}
	_ = e.log.Sync()
	return nil
}

func envFrom(cctx *cli.Context) *env {
	return cctx.App.Metadata[envKey].(*env)
}

// actor resolves --actor against the stored employees.
func (e *env) actor(cctx *cli.Context) (authsvc.Identity, error) {
	raw := strings.TrimSpace(cctx.String("actor"))
	if raw == "" {
		return authsvc.Identity{}, faults.Validation("--actor is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return authsvc.Identity{}, faults.Validation("--actor must be an employee id")
	}
	return e.resolve(cctx.Context, id)
}

func (e *env) resolve(ctx context.Context, id uuid.UUID) (authsvc.Identity, error) {
	identity, err := e.core.Resolver.Resolve(ctx, authsvc.AccessClaims{EmployeeID: id})
	if errors.Is(err, authsvc.ErrUnauthorized) {
		return authsvc.Identity{}, faults.Forbidden("employee %s cannot act on cases", id)
	}
	return identity, err
}

func (e *env) print(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type seedFile struct {
	Users []struct {
		Username string `yaml:"username"`
		Email    string `yaml:"email"`
	} `yaml:"users"`
	Employees []struct {
		ID     string `yaml:"id"`
		Name   string `yaml:"name"`
		Email  string `yaml:"email"`
		Role   string `yaml:"role"`
		Active *bool  `yaml:"active"`
	} `yaml:"employees"`
	Contents []struct {
		ID    string `yaml:"id"`
		Type  string `yaml:"type"`
		Owner string `yaml:"owner"`
	} `yaml:"contents"`
}

func loadSeed(ctx context.Context, store repo.Store, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return faults.Validation("read seed %s: %v", path, err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return faults.Validation("parse seed %s: %v", path, err)
	}

	return store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		for _, u := range seed.Users {
			if _, err := tx.Users().Create(ctx, model.User{Username: u.Username, Email: u.Email, Status: enums.UserStatusActive}); err != nil {
				return fmt.Errorf("seed user %s: %w", u.Username, err)
			}
		}
		for _, emp := range seed.Employees {
			id, err := optionalUUID(emp.ID)
			if err != nil {
				return faults.Validation("seed employee %s: %v", emp.Name, err)
			}
			active := emp.Active == nil || *emp.Active
			if _, err := tx.Employees().Create(ctx, model.Employee{
				ID: id, Name: emp.Name, Email: emp.Email, Role: enums.ParseRole(emp.Role), IsActive: active,
			}); err != nil {
				return fmt.Errorf("seed employee %s: %w", emp.Name, err)
			}
		}
		for _, c := range seed.Contents {
			id, err := optionalUUID(c.ID)
			if err != nil {
				return faults.Validation("seed content: %v", err)
			}
			contentType, ok := enums.ParseContentType(c.Type)
			if !ok || !contentType.Stored() {
				return faults.Validation("seed content %s: type must be post or comment", c.ID)
			}
			owner, err := tx.Users().GetByUsername(ctx, c.Owner)
			if err != nil {
				return err
			}
			if _, err := tx.Contents().Create(ctx, model.Content{ID: id, Type: contentType, OwnerUserID: owner.ID}); err != nil {
				return fmt.Errorf("seed content %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

func optionalUUID(raw string) (uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(strings.TrimSpace(raw))
}
