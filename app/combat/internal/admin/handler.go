// Package admin 运维 HTTP 接口：健康检查、zone 与 Agent 查询、调试出生
package admin

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/xdooria-combat/app/combat/internal/replication"
	"github.com/lk2023060901/xdooria-combat/app/combat/internal/zone"
	"github.com/lk2023060901/xdooria-combat/pkg/agent"
	"github.com/lk2023060901/xdooria-combat/pkg/app"
	"github.com/lk2023060901/xdooria-combat/pkg/arbitration"
	"github.com/lk2023060901/xdooria-combat/pkg/geom"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
	"github.com/lk2023060901/xdooria-combat/pkg/metrics/sliding"
	"github.com/lk2023060901/xdooria-combat/pkg/metrics/system"
	"github.com/lk2023060901/xdooria-combat/pkg/security"
	"github.com/lk2023060901/xdooria-combat/pkg/web"
	weberrors "github.com/lk2023060901/xdooria-combat/pkg/web/errors"
	"github.com/lk2023060901/xdooria-combat/pkg/web/middleware"
)

// Zones zone 查询
type Zones interface {
	Zones() []*zone.Zone
	Zone(id string) (*zone.Zone, error)
}

// Archetypes Archetype 解析
type Archetypes interface {
	Archetype(id string) (*agent.Archetype, error)
}

// Stats 运行指标
type Stats interface {
	SystemStats() system.Stats
	TickStats(zone string) sliding.Stats
}

// Replicas 非权威节点的副本
type Replicas interface {
	Tick() uint64
	Replicas() []replication.Replica
}

// Option 选项
type Option func(*Handler)

// WithMetricsHandler 挂载 /metrics
func WithMetricsHandler(h http.Handler) Option {
	return func(a *Handler) { a.metrics = h }
}

// WithReplicas 挂载 /mirror
func WithReplicas(r Replicas) Option {
	return func(a *Handler) { a.replicas = r }
}

// Handler 运维接口
type Handler struct {
	zones      Zones
	archetypes Archetypes
	stats      Stats
	jwt        *security.JWTManager
	logger     logger.Logger
	metrics    http.Handler
	replicas   Replicas
	started    time.Time
}

// NewHandler 创建运维接口
func NewHandler(zones Zones, archetypes Archetypes, stats Stats, jwt *security.JWTManager, l logger.Logger, opts ...Option) *Handler {
	h := &Handler{
		zones:      zones,
		archetypes: archetypes,
		stats:      stats,
		jwt:        jwt,
		logger:     l.Named("handler.admin"),
		started:    time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register 注册路由
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.Health)
	r.GET("/status", h.Status)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}
	if h.replicas != nil {
		r.GET("/mirror", h.Mirror)
	}

	zones := r.Group("/zones")
	{
		zones.GET("", h.ListZones)
		zones.GET("/:id/agents", h.ListAgents)
		zones.GET("/:id/agents/:net", h.GetAgent)
		zones.GET("/:id/agents/:net/arbitration", h.Arbitration)
	}

	debug := r.Group("/zones", middleware.Auth(h.jwt))
	{
		debug.POST("/:id/spawn", h.Spawn)
		debug.DELETE("/:id/agents/:net", h.Despawn)
	}
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ZoneInfo zone 概要
type ZoneInfo struct {
	ID      string        `json:"id"`
	Owned   bool          `json:"owned"`
	Agents  int           `json:"agents"`
	Tick    uint64        `json:"tick"`
	SimTime string        `json:"sim_time"`
	TickMS  sliding.Stats `json:"tick_ms"`
}

func (h *Handler) zoneInfo(z *zone.Zone) ZoneInfo {
	snap := z.Snapshot()
	return ZoneInfo{
		ID:      z.ID(),
		Owned:   z.Owned(),
		Agents:  z.Len(),
		Tick:    snap.Tick,
		SimTime: snap.SimTime.String(),
		TickMS:  h.stats.TickStats(z.ID()),
	}
}

// StatusResponse 进程状态
type StatusResponse struct {
	App    app.Info     `json:"app"`
	Uptime string       `json:"uptime"`
	System system.Stats `json:"system"`
	Zones  []ZoneInfo   `json:"zones"`
}

// Status 版本、进程资源与各 zone 的 tick 统计
func (h *Handler) Status(c *gin.Context) {
	resp := StatusResponse{
		App:    app.GetInfo(),
		Uptime: time.Since(h.started).Truncate(time.Second).String(),
		System: h.stats.SystemStats(),
	}
	for _, z := range h.zones.Zones() {
		resp.Zones = append(resp.Zones, h.zoneInfo(z))
	}
	web.Success(c, resp)
}

// ListZones 全部 zone
func (h *Handler) ListZones(c *gin.Context) {
	zones := h.zones.Zones()
	out := make([]ZoneInfo, 0, len(zones))
	for _, z := range zones {
		out = append(out, h.zoneInfo(z))
	}
	web.Success(c, out)
}

func (h *Handler) zone(c *gin.Context) (*zone.Zone, bool) {
	z, err := h.zones.Zone(c.Param("id"))
	if err != nil {
		web.Error(c, weberrors.CodeNotFound, err.Error())
		return nil, false
	}
	return z, true
}

// ListAgents zone 内全部 Agent 的状态、阶段与目标
func (h *Handler) ListAgents(c *gin.Context) {
	z, ok := h.zone(c)
	if !ok {
		return
	}
	web.Success(c, z.Agents())
}

// GetAgent 单个 Agent
func (h *Handler) GetAgent(c *gin.Context) {
	z, ok := h.zone(c)
	if !ok {
		return
	}
	netID, ok := web.ParamUint(c, "net")
	if !ok {
		return
	}
	v, found := z.Agent(netID)
	if !found {
		web.Error(c, weberrors.CodeNotFound, zone.ErrAgentNotFound.Error())
		return
	}
	web.Success(c, v)
}

// ArbitrationResponse 最近一次仲裁的评分表
type ArbitrationResponse struct {
	NetID  uint64              `json:"net_id"`
	Scores []arbitration.Score `json:"scores"`
}

// Arbitration Agent 的当前评分表
func (h *Handler) Arbitration(c *gin.Context) {
	z, ok := h.zone(c)
	if !ok {
		return
	}
	netID, ok := web.ParamUint(c, "net")
	if !ok {
		return
	}
	scores, err := z.Scores(netID)
	if err != nil {
		web.Error(c, weberrors.CodeNotFound, err.Error())
		return
	}
	web.Success(c, ArbitrationResponse{NetID: netID, Scores: scores})
}

// SpawnRequest 调试出生请求
type SpawnRequest struct {
	Archetype string  `json:"archetype" binding:"required,slug"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Faction   string  `json:"faction" binding:"omitempty,slug"`
	Count     int     `json:"count" binding:"omitempty,min=1,max=50"`
}

// Spawn 调试出生
func (h *Handler) Spawn(c *gin.Context) {
	z, ok := h.zone(c)
	if !ok {
		return
	}
	var req SpawnRequest
	if !web.BindAndValidate(c, &req) {
		return
	}
	if !z.Owned() {
		web.Error(c, weberrors.CodeUnavailable, "zone is not owned by this node")
		return
	}
	arch, err := h.archetypes.Archetype(req.Archetype)
	if err != nil {
		web.Error(c, weberrors.CodeInvalidParams, err.Error())
		return
	}

	count := max(req.Count, 1)
	views := make([]agent.View, 0, count)
	for range count {
		v, err := z.Spawn(arch, geom.V(req.X, req.Y), req.Faction)
		if err != nil {
			if errors.Is(err, zone.ErrZoneFull) && len(views) > 0 {
				break
			}
			web.Error(c, weberrors.CodeUnavailable, err.Error())
			return
		}
		views = append(views, v)
	}

	subject := ""
	if claims, ok := middleware.GetClaims(c); ok {
		subject = claims.Subject
	}
	h.logger.Info("debug spawn",
		"zone", z.ID(),
		"archetype", arch.ID,
		"count", len(views),
		"subject", subject,
	)
	web.Success(c, views)
}

// Despawn 移除 Agent
func (h *Handler) Despawn(c *gin.Context) {
	z, ok := h.zone(c)
	if !ok {
		return
	}
	netID, ok := web.ParamUint(c, "net")
	if !ok {
		return
	}
	if !z.Despawn(netID) {
		web.Error(c, weberrors.CodeNotFound, zone.ErrAgentNotFound.Error())
		return
	}
	web.Success(c, gin.H{"net_id": netID})
}

// MirrorResponse 副本列表
type MirrorResponse struct {
	Tick     uint64                `json:"tick"`
	Replicas []replication.Replica `json:"replicas"`
}

// Mirror 非权威节点看到的副本
func (h *Handler) Mirror(c *gin.Context) {
	web.Success(c, MirrorResponse{Tick: h.replicas.Tick(), Replicas: h.replicas.Replicas()})
}
