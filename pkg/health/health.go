package health

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("health", fx.Provide(ProvideHealth, ProvideGRPCHealth))

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

type Dependency struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Health struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Deps    []Dependency `json:"deps,omitempty"`
}

type HealthService interface {
	Liveness(c *gin.Context)
	Readiness(c *gin.Context)
}

type health struct {
	db    *gorm.DB
	redis *redis.Client
}

type HealthParams struct {
	fx.In
	DB    *gorm.DB      `optional:"true"`
	Redis *redis.Client `optional:"true"`
}

func ProvideHealth(p HealthParams) HealthService {
	return &health{
		db:    p.DB,
		redis: p.Redis,
	}
}

func (h *health) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, &Health{
		Status:  statusHealthy,
		Message: "OK",
	})
}

func (h *health) Readiness(c *gin.Context) {
	this := &Health{
		Status:  statusHealthy,
		Message: "OK",
		Deps:    h.check(c.Request.Context()),
	}

	code := http.StatusOK
	for _, dep := range this.Deps {
		if dep.Status != statusHealthy {
			this.Status = statusUnhealthy
			this.Message = dep.Name + " is not ready"
			code = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(code, this)
}

func (h *health) check(ctx context.Context) []Dependency {
	deps := make([]Dependency, 0, 2)
	if h.db != nil {
		deps = append(deps, probe(h.db.Name(), pingDB(ctx, h.db)))
	}

	if h.redis != nil {
		deps = append(deps, probe("redis", h.redis.Ping(ctx).Err()))
	}

	return deps
}

func probe(name string, err error) Dependency {
	if err != nil {
		return Dependency{Name: name, Status: statusUnhealthy, Message: err.Error()}
	}
	return Dependency{Name: name, Status: statusHealthy, Message: "OK"}
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
