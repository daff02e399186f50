package memory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/hsiatein/helenium/internal/bus"
	"github.com/hsiatein/helenium/internal/config"
	"github.com/hsiatein/helenium/internal/config/logger"
	"github.com/hsiatein/helenium/internal/hub"
	"github.com/hsiatein/helenium/internal/proto"
	"github.com/hsiatein/helenium/internal/runtime"
)

// memoryConfig is this service's own subtree of the configuration
// document, mirroring service-memory/src/config.rs's MemoryConfig.
type memoryConfig struct {
	ShortTermLength int    `json:"short_term_length"`
	StorageDir      string `json:"storage_dir"`
	DisplayLength   int    `json:"display_length"`
}

func loadMemoryConfig(cfg *config.Config) memoryConfig {
	mc := memoryConfig{
		ShortTermLength: config.DefaultShortTermLength,
		StorageDir:      config.DefaultMemoryStorageDir,
		DisplayLength:   config.DefaultDisplayLength,
	}
	if cfg == nil {
		return mc
	}
	if raw := cfg.ServiceSubtree(proto.MemoryService); raw != nil {
		_ = json.Unmarshal(raw, &mc)
	}
	if mc.ShortTermLength < 1 {
		mc.ShortTermLength = config.DefaultShortTermLength
	}
	if mc.StorageDir == "" {
		mc.StorageDir = config.DefaultMemoryStorageDir
	}
	if mc.DisplayLength < 1 {
		mc.DisplayLength = config.DefaultDisplayLength
	}
	return mc
}

// Runtime implements runtime.Handler: the Memory service. Grounded on
// service-memory/src/lib.rs's MemoryService — a short_term ring buffer
// of the most recent entries kept alongside the sqlite-backed log,
// republishing DisplayMessages on every Post. GetSimilarMemoryEntries
// and SetEmbedAvailable from the original MemoryServiceMessage are not
// carried: both exist only to serve embedding-backed similarity
// search, which depends on a separate embedding component this build
// does not wire up (see DESIGN.md).
type Runtime struct {
	bus    bus.Bus
	handle *bus.Handle
	log    logger.Logger

	cfg memoryConfig
	db  *store

	shortTerm []proto.MemoryEntry
}

// New opens the storage directory and sqlite database and preloads the
// short-term buffer from the most recent rows. It publishes nothing;
// the DisplayMessages resource first appears after a successful Post.
// Grounded on MemoryService::new.
func New(cfg *config.Config, b bus.Bus, h *bus.Handle, log logger.Logger) (*Runtime, error) {
	mc := loadMemoryConfig(cfg)

	if err := os.MkdirAll(mc.StorageDir, 0o755); err != nil {
		return nil, err
	}
	db, err := openStore(filepath.Join(mc.StorageDir, "memory.db"))
	if err != nil {
		return nil, err
	}

	recent, err := db.loadRecent(mc.ShortTermLength)
	if err != nil {
		db.close()
		return nil, err
	}

	r := &Runtime{
		bus:       b,
		handle:    h,
		log:       log,
		cfg:       mc,
		db:        db,
		shortTerm: recent,
	}
	return r, nil
}

// Factory adapts New to runtime.Factory.
func Factory(cfg *config.Config, log logger.Logger) runtime.Factory {
	return runtime.Factory{
		Name: proto.MemoryService,
		Deps: []string{proto.HubService},
		Role: proto.RoleStandard,
		New: func(ctx context.Context, h *bus.Handle, b bus.Bus) (runtime.Handler, error) {
			return New(cfg, b, h, log)
		},
	}
}

func (r *Runtime) HandleMessage(ctx context.Context, env proto.SignedEnvelope) (bool, error) {
	switch p := env.Payload.(type) {
	case PostRequest:
		r.post(p.Role, p.Content)
		return true, nil

	case GetRequest:
		entries, err := r.db.getDisplayMessages(p.IDUpperBound, r.cfg.DisplayLength)
		if err != nil {
			if r.log != nil {
				r.log.Warn().Err(err).Msg("failed to read display messages")
			}
			p.Reply <- nil
			return true, nil
		}
		p.Reply <- entries
		return true, nil

	case GetChatMemoriesRequest:
		snapshot := make([]proto.MemoryEntry, len(r.shortTerm))
		copy(snapshot, r.shortTerm)
		p.Reply <- snapshot
		return true, nil

	case DeleteRequest:
		r.delete(p.ID)
		return true, nil

	default:
		return false, nil
	}
}

func (r *Runtime) HandleTick(ctx context.Context) error                        { return nil }
func (r *Runtime) HandleResource(ctx context.Context, res proto.Resource) error { return nil }

func (r *Runtime) Stop(ctx context.Context) error {
	return r.db.close()
}

// post saves a new entry, evicts the oldest short-term entry past
// capacity, and republishes DisplayMessages with just the new entry.
// Grounded on MemoryService::handle's Post arm.
func (r *Runtime) post(role string, content []byte) {
	entry, err := r.db.save(role, json.RawMessage(content))
	if err != nil {
		if r.log != nil {
			r.log.Warn().Err(err).Str("role", role).Msg("failed to save memory entry")
		}
		return
	}

	if len(r.shortTerm) >= r.cfg.ShortTermLength {
		r.shortTerm = r.shortTerm[1:]
	}
	r.shortTerm = append(r.shortTerm, entry)

	res := proto.Resource{
		Name:    proto.ResourceDisplayMessages,
		Payload: proto.DisplayMessagesPayload{New: true, Messages: []proto.MemoryEntry{entry}},
	}
	_ = bus.Tell(r.bus, r.handle, proto.HubService, hub.PublishRequest{Resource: res}, false)
}

// delete removes an entry from both the short-term buffer and the
// database. Grounded on MemoryService::handle's Delete arm.
func (r *Runtime) delete(id int64) {
	filtered := r.shortTerm[:0]
	for _, e := range r.shortTerm {
		if e.ID != id {
			filtered = append(filtered, e)
		}
	}
	r.shortTerm = filtered

	if err := r.db.deleteEntry(id); err != nil && r.log != nil {
		r.log.Warn().Err(err).Int("id", int(id)).Msg("failed to delete memory entry")
	}
}
