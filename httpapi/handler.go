package httpapi

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-auth"
	"github.com/goliatone/go-profilesync/command"
	"github.com/goliatone/go-profilesync/identity"
	"github.com/goliatone/go-profilesync/pkg/authctx"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/goliatone/go-profilesync/query"
	"github.com/goliatone/go-profilesync/realtime"
	"github.com/goliatone/go-profilesync/service"
	"github.com/google/uuid"
)

const actorLocal = "profilesync.actor"

var (
	// ErrMissingService occurs when the handler is built without a service.
	ErrMissingService = errors.New("httpapi: service required")
	// ErrMissingVerifier occurs when the handler is built without a verifier.
	ErrMissingVerifier = errors.New("httpapi: token verifier required")
)

// TokenVerifier turns a bearer token into the caller's actor.
type TokenVerifier interface {
	Verify(token string) (*auth.ActorContext, error)
}

// Config wires the HTTP handler.
type Config struct {
	Service  *service.Service
	Verifier TokenVerifier
	// Changes backs the websocket route. When nil the route is not mounted.
	Changes      realtime.Channel
	Logger       types.Logger
	PingInterval time.Duration
	PongWait     time.Duration
}

// Handler serves the sync API.
type Handler struct {
	svc          *service.Service
	verifier     TokenVerifier
	changes      realtime.Channel
	logger       types.Logger
	pingInterval time.Duration
	pongWait     time.Duration
}

// New validates cfg and builds a handler.
func New(cfg Config) (*Handler, error) {
	if cfg.Service == nil {
		return nil, ErrMissingService
	}
	if cfg.Verifier == nil {
		return nil, ErrMissingVerifier
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	ping := cfg.PingInterval
	if ping <= 0 {
		ping = realtime.PingInterval
	}
	pong := cfg.PongWait
	if pong <= 0 {
		pong = realtime.PongWait
	}
	return &Handler{
		svc:          cfg.Service,
		verifier:     cfg.Verifier,
		changes:      cfg.Changes,
		logger:       logger,
		pingInterval: ping,
		pongWait:     pong,
	}, nil
}

// NewApp builds a fiber application with the handler routes mounted.
func NewApp(cfg Config) (*fiber.App, error) {
	h, err := New(cfg)
	if err != nil {
		return nil, err
	}
	app := fiber.New(fiber.Config{
		AppName:               "profilesync",
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})
	h.Register(app)
	return app, nil
}

// Register mounts the routes on router.
func (h *Handler) Register(router fiber.Router) {
	router.Get("/healthz", h.health)

	api := router.Group("/api", h.authenticate)
	api.Get("/profile", h.currentProfile)
	api.Post("/profile", h.saveProfile)
	api.Get("/profiles", h.activeProfiles)
	api.Post("/profiles", h.syncProfiles)
	api.Post("/profiles/repair", h.repairProfiles)
	api.Get("/profiles/activity", h.activity)
	if h.changes != nil {
		api.Get("/realtime", requireUpgrade, websocket.New(h.stream))
	}
}

func (h *Handler) authenticate(c *fiber.Ctx) error {
	token := identity.BearerToken(c.Get(fiber.HeaderAuthorization))
	if token == "" && websocket.IsWebSocketUpgrade(c) {
		token = c.Query("token")
	}
	actor, err := h.verifier.Verify(token)
	if err != nil {
		return err
	}
	c.SetUserContext(authctx.WithActor(c.UserContext(), actor))
	c.Locals(actorLocal, actor)
	return c.Next()
}

func requireUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

func (h *Handler) health(c *fiber.Ctx) error {
	if err := h.svc.HealthCheck(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *Handler) currentProfile(c *fiber.Ctx) error {
	actor, err := resolveActor(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.Queries().CurrentProfile.Query(c.UserContext(), query.CurrentProfileInput{
		UserID:     actor.ID,
		ProfileKey: actor.Key,
	})
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

func (h *Handler) saveProfile(c *fiber.Ctx) error {
	actor, err := resolveActor(c)
	if err != nil {
		return err
	}
	var payload any
	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			payload = nil
		}
	}
	var doc types.ProfileDocument
	if err := h.svc.Commands().ProfileSave.Execute(c.UserContext(), command.ProfileSaveInput{
		UserID:     actor.ID,
		ProfileKey: actor.Key,
		Payload:    payload,
		Result:     &doc,
	}); err != nil {
		return err
	}
	return c.JSON(doc)
}

func (h *Handler) activeProfiles(c *fiber.Ctx) error {
	actor, err := resolveActor(c)
	if err != nil {
		return err
	}
	docs, err := h.svc.Queries().ActiveProfiles.Query(c.UserContext(), query.ActiveProfilesInput{
		UserID:     actor.ID,
		ProfileKey: actor.Key,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"profiles": docs})
}

type syncRequest struct {
	Profiles json.RawMessage `json:"profiles"`
	FullSync bool            `json:"fullSync"`
}

func (h *Handler) syncProfiles(c *fiber.Ctx) error {
	actor, err := resolveActor(c)
	if err != nil {
		return err
	}
	var req syncRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return types.NewMalformedPayloadError("request body must be a JSON object")
	}
	var profiles map[string]any
	if len(req.Profiles) == 0 || json.Unmarshal(req.Profiles, &profiles) != nil || profiles == nil {
		return types.NewMalformedPayloadError("profiles object required", map[string]any{"field": "profiles"})
	}

	var result map[string]types.ProfileDocument
	if err := h.svc.Commands().ProfileSync.Execute(c.UserContext(), command.ProfileSyncInput{
		UserID:     actor.ID,
		ProfileKey: actor.Key,
		Profiles:   profiles,
		FullSync:   req.FullSync,
		Result:     &result,
	}); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"profiles": result})
}

func (h *Handler) repairProfiles(c *fiber.Ctx) error {
	actor, err := resolveActor(c)
	if err != nil {
		return err
	}
	var repaired []types.ProfileDocument
	if err := h.svc.Commands().ProfileRepair.Execute(c.UserContext(), command.ProfileRepairInput{
		UserID:     actor.ID,
		ProfileKey: actor.Key,
		Result:     &repaired,
	}); err != nil {
		return err
	}
	if repaired == nil {
		repaired = []types.ProfileDocument{}
	}
	return c.JSON(fiber.Map{"repaired": repaired})
}

type activityEntry struct {
	ID          uuid.UUID      `json:"id"`
	ProfileName string         `json:"profileName"`
	Verb        string         `json:"verb"`
	Version     int            `json:"version"`
	Data        map[string]any `json:"data"`
	OccurredAt  time.Time      `json:"occurredAt"`
}

func (h *Handler) activity(c *fiber.Ctx) error {
	actor, err := resolveActor(c)
	if err != nil {
		return err
	}
	filter := types.ActivityFilter{
		UserID:      actor.ID,
		ProfileName: strings.TrimSpace(c.Query("profile")),
		Limit:       queryInt(c, "limit"),
		Offset:      queryInt(c, "offset"),
	}
	if verbs := strings.TrimSpace(c.Query("verb")); verbs != "" {
		for _, verb := range strings.Split(verbs, ",") {
			if verb = strings.TrimSpace(verb); verb != "" {
				filter.Verbs = append(filter.Verbs, verb)
			}
		}
	}
	page, err := h.svc.Queries().SyncActivity.Query(c.UserContext(), filter)
	if err != nil {
		return err
	}
	entries := make([]activityEntry, 0, len(page.Records))
	for _, record := range page.Records {
		entries = append(entries, activityEntry{
			ID:          record.ID,
			ProfileName: record.ProfileName,
			Verb:        record.Verb,
			Version:     record.Version,
			Data:        record.Data,
			OccurredAt:  record.OccurredAt,
		})
	}
	return c.JSON(fiber.Map{
		"records":    entries,
		"total":      page.Total,
		"nextOffset": page.NextOffset,
		"hasMore":    page.HasMore,
	})
}

func resolveActor(c *fiber.Ctx) (types.ActorRef, error) {
	ref, _, err := authctx.ResolveActor(c.UserContext())
	return ref, err
}

func queryInt(c *fiber.Ctx, key string) int {
	value, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil || value < 0 {
		return 0
	}
	return value
}
