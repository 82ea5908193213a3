package anacrolix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/anacrolix/torrent"

	"torrentsession/internal/domain"
	"torrentsession/internal/domain/ports"
)

// defaultMaxConns is restored when a hard-paused transfer resumes.
const defaultMaxConns = 35

const (
	// addTimeout caps how long we wait for the client to accept a magnet or
	// metainfo file. AddMagnet can block on the client mutex while another
	// torrent is resolving metadata.
	addTimeout = 10 * time.Second
	// infoWaitTimeout is how long Create waits for metadata so it can report
	// a name and size. Transfers without metadata are still accepted.
	infoWaitTimeout      = 5 * time.Second
	defaultAlertInterval = time.Second
)

var ErrClientBusy = errors.New("torrent client busy, try again later")

type Config struct {
	DataDir       string
	ListenPort    int
	AlertInterval time.Duration
	Logger        *slog.Logger
}

type session struct {
	torrent *torrent.Torrent
	paused  bool
	// peakCompleted is a high-water mark for BytesCompleted: anacrolix
	// re-verifies pieces after restart and the counter can dip.
	peakCompleted int64
}

// Engine adapts an anacrolix client to ports.Engine. Transfers are keyed by
// the id the registry allocated; progress is reported through a periodic
// alert stream.
type Engine struct {
	client   *torrent.Client
	mu       sync.RWMutex
	sessions map[domain.TransferID]*session
	hashes   map[string]domain.TransferID
	speedMu  sync.Mutex
	speeds   map[domain.TransferID]speedSample
	alerts   *alertQueue
	interval time.Duration
	logger   *slog.Logger

	stop      context.CancelFunc
	loopDone  chan struct{}
	closeOnce sync.Once
}

var _ ports.Engine = (*Engine)(nil)

func New(cfg Config) (*Engine, error) {
	clientConfig := torrent.NewDefaultClientConfig()
	if cfg.DataDir != "" {
		clientConfig.DataDir = cfg.DataDir
	}
	if cfg.ListenPort > 0 {
		clientConfig.ListenPort = cfg.ListenPort
	}

	client, err := torrent.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("start torrent client: %w", err)
	}
	e := newEngine(client, cfg)
	e.start()
	return e, nil
}

func newEngine(client *torrent.Client, cfg Config) *Engine {
	interval := cfg.AlertInterval
	if interval <= 0 {
		interval = defaultAlertInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client:   client,
		sessions: make(map[domain.TransferID]*session),
		hashes:   make(map[string]domain.TransferID),
		speeds:   make(map[domain.TransferID]speedSample),
		alerts:   newAlertQueue(),
		interval: interval,
		logger:   logger,
		loopDone: make(chan struct{}),
	}
}

func (e *Engine) start() {
	ctx, cancel := context.WithCancel(context.Background())
	e.stop = cancel
	go e.alertLoop(ctx)
}

func (e *Engine) Alerts() <-chan domain.Alert {
	return e.alerts.out
}

func (e *Engine) Create(ctx context.Context, id domain.TransferID, src domain.TransferSource) (ports.CreateResult, error) {
	if e.client == nil {
		return ports.CreateResult{}, errors.New("torrent client not configured")
	}

	e.mu.RLock()
	_, exists := e.sessions[id]
	e.mu.RUnlock()
	if exists {
		return ports.CreateResult{}, fmt.Errorf("%w: transfer %d", domain.ErrAlreadyExists, id)
	}

	t, err := e.addTorrent(ctx, src)
	if err != nil {
		return ports.CreateResult{}, err
	}

	hash := t.InfoHash().HexString()
	e.mu.Lock()
	if owner, dup := e.hashes[hash]; dup {
		e.mu.Unlock()
		// The client hands back the torrent already owned by another
		// transfer; dropping it would kill that transfer.
		return ports.CreateResult{}, fmt.Errorf("%w: infohash %s is transfer %d", domain.ErrAlreadyExists, hash, owner)
	}
	e.sessions[id] = &session{torrent: t}
	e.hashes[hash] = id
	e.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, infoWaitTimeout)
	defer cancel()

	select {
	case <-t.GotInfo():
		t.DownloadAll()
		return ports.CreateResult{Name: t.Name(), TotalBytes: t.Length()}, nil
	case <-waitCtx.Done():
		go e.waitForInfo(id, t)
		return ports.CreateResult{}, nil
	}
}

// addTorrent runs AddMagnet / AddTorrentFromFile with a timeout so a busy
// client never blocks the caller indefinitely.
func (e *Engine) addTorrent(ctx context.Context, src domain.TransferSource) (*torrent.Torrent, error) {
	type addResult struct {
		t   *torrent.Torrent
		err error
	}
	ch := make(chan addResult, 1)
	go func() {
		var t *torrent.Torrent
		var err error
		if src.Magnet != "" {
			t, err = e.client.AddMagnet(src.Magnet)
		} else {
			t, err = e.client.AddTorrentFromFile(src.Torrent)
		}
		ch <- addResult{t, err}
	}()

	dropLate := func() {
		// The add may still complete after we return.
		go func() {
			if res := <-ch; res.t != nil {
				e.releaseLateAdd(res.t.InfoHash().HexString(), res.t.Drop)
			}
		}()
	}

	select {
	case res := <-ch:
		return res.t, res.err
	case <-time.After(addTimeout):
		dropLate()
		return nil, ErrClientBusy
	case <-ctx.Done():
		dropLate()
		return nil, ctx.Err()
	}
}

// releaseLateAdd drops a torrent whose add finished after the caller gave
// up. The client returns the existing handle for a known infohash, so a
// handle owned by a registered transfer is left alone. Reports whether drop
// was called.
func (e *Engine) releaseLateAdd(hash string, drop func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if owner, owned := e.hashes[hash]; owned {
		e.logger.Debug("late add matched a running transfer",
			slog.String("infoHash", hash),
			slog.Uint64("transferId", uint64(owner)),
		)
		return false
	}
	drop()
	return true
}

// waitForInfo starts downloading once metadata arrives, unless the transfer
// was paused or removed in the meantime.
func (e *Engine) waitForInfo(id domain.TransferID, t *torrent.Torrent) {
	select {
	case <-t.GotInfo():
	case <-t.Closed():
		return
	case <-e.loopDone:
		return
	}

	e.mu.RLock()
	s, ok := e.sessions[id]
	paused := ok && s.paused
	e.mu.RUnlock()
	if !ok || paused {
		return
	}
	t.DownloadAll()
	e.logger.Debug("transfer metadata received",
		slog.Uint64("transferId", uint64(id)),
		slog.String("name", t.Name()),
	)
}

func (e *Engine) Pause(ctx context.Context, id domain.TransferID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[id]
	if !ok {
		return fmt.Errorf("%w: transfer %d", domain.ErrNotFound, id)
	}
	hardPause(s.torrent)
	s.paused = true
	return nil
}

func (e *Engine) Resume(ctx context.Context, id domain.TransferID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[id]
	if !ok {
		return fmt.Errorf("%w: transfer %d", domain.ErrNotFound, id)
	}
	resume(s.torrent)
	s.paused = false
	return nil
}

// Remove stops the transfer and drops it from the client. Data already
// written to disk is left in place.
func (e *Engine) Remove(ctx context.Context, id domain.TransferID) error {
	e.mu.Lock()
	s, ok := e.sessions[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: transfer %d", domain.ErrNotFound, id)
	}
	delete(e.sessions, id)
	for hash, owner := range e.hashes {
		if owner == id {
			delete(e.hashes, hash)
		}
	}
	e.mu.Unlock()

	e.forgetSpeed(id)
	if s.torrent != nil {
		s.torrent.Drop()
	}
	freeOSMemory()
	return nil
}

// Close stops alert emission, shuts the client down and closes the alert
// stream. It is safe to call more than once.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		if e.stop != nil {
			e.stop()
			<-e.loopDone
		} else {
			close(e.loopDone)
		}
		if e.client != nil {
			if errs := e.client.Close(); len(errs) > 0 {
				err = errs[0]
			}
		}
		e.alerts.close()
	})
	return err
}

func (e *Engine) alertLoop(ctx context.Context) {
	defer close(e.loopDone)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.emitAlerts(time.Now().UTC())
		}
	}
}

func (e *Engine) emitAlerts(now time.Time) {
	e.mu.RLock()
	snapshots := make([]torrentSnapshot, 0, len(e.sessions))
	for id, s := range e.sessions {
		snapshots = append(snapshots, snapshotOf(id, s.torrent))
	}
	e.mu.RUnlock()

	for _, snap := range snapshots {
		e.alerts.push(domain.Alert{ID: snap.id, Stats: e.statsFor(snap, now)})
	}
}

// torrentSnapshot is what one alert needs from a torrent, read without
// holding the engine lock.
type torrentSnapshot struct {
	id        domain.TransferID
	ready     bool
	length    int64
	completed int64
	peers     int
	seeding   bool
	stats     torrent.TorrentStats
}

func snapshotOf(id domain.TransferID, t *torrent.Torrent) torrentSnapshot {
	snap := torrentSnapshot{id: id}
	if t == nil {
		return snap
	}
	snap.stats = t.Stats()
	snap.peers = snap.stats.ActivePeers
	if !torrentInfoReady(t) {
		return snap
	}
	snap.ready = true
	snap.length = t.Length()
	snap.completed = t.BytesCompleted()
	snap.seeding = t.Seeding()
	return snap
}

func (e *Engine) statsFor(snap torrentSnapshot, now time.Time) domain.TransferStats {
	download, upload := e.sampleSpeed(snap.id, snap.stats, now)
	stats := domain.TransferStats{
		Peers:         snap.peers,
		DownloadSpeed: download,
		UploadSpeed:   upload,
	}
	if !snap.ready {
		return stats
	}

	completed := snap.completed
	e.mu.Lock()
	if s, ok := e.sessions[snap.id]; ok {
		if completed > s.peakCompleted {
			s.peakCompleted = completed
		} else {
			completed = s.peakCompleted
		}
	}
	e.mu.Unlock()

	if snap.length > 0 && completed > snap.length {
		completed = snap.length
	}
	stats.Total = snap.length
	stats.Downloaded = completed
	if snap.length > 0 {
		stats.Progress = float64(completed) / float64(snap.length)
	}
	stats.Seeding = snap.seeding
	return stats
}

// hardPause disconnects every peer and stops data flowing in both
// directions.
func hardPause(t *torrent.Torrent) {
	if t == nil {
		return
	}
	t.DisallowDataDownload()
	t.DisallowDataUpload()
	t.SetMaxEstablishedConns(0)
}

func resume(t *torrent.Torrent) {
	if t == nil {
		return
	}
	t.SetMaxEstablishedConns(defaultMaxConns)
	t.AllowDataUpload()
	t.AllowDataDownload()
	if torrentInfoReady(t) {
		t.DownloadAll()
	}
}

// freeOSMemory returns memory to the OS after a transfer is dropped.
// Without it the runtime holds freed pages long enough to OOM small hosts.
func freeOSMemory() {
	runtime.GC()
	debug.FreeOSMemory()
}

func torrentInfoReady(t *torrent.Torrent) bool {
	if t == nil {
		return false
	}
	select {
	case <-t.GotInfo():
		return true
	default:
		return false
	}
}

type speedSample struct {
	at           time.Time
	bytesRead    int64
	bytesWritten int64
}

func (e *Engine) sampleSpeed(id domain.TransferID, stats torrent.TorrentStats, now time.Time) (int64, int64) {
	currentRead := stats.BytesReadUsefulData.Int64()
	currentWritten := stats.BytesWrittenData.Int64()

	e.speedMu.Lock()
	defer e.speedMu.Unlock()

	prev, ok := e.speeds[id]
	e.speeds[id] = speedSample{
		at:           now,
		bytesRead:    currentRead,
		bytesWritten: currentWritten,
	}

	if !ok || prev.at.IsZero() {
		return 0, 0
	}

	dt := now.Sub(prev.at).Seconds()
	if dt <= 0 {
		return 0, 0
	}

	deltaRead := currentRead - prev.bytesRead
	deltaWritten := currentWritten - prev.bytesWritten
	if deltaRead < 0 {
		deltaRead = 0
	}
	if deltaWritten < 0 {
		deltaWritten = 0
	}

	return int64(float64(deltaRead) / dt), int64(float64(deltaWritten) / dt)
}

func (e *Engine) forgetSpeed(id domain.TransferID) {
	e.speedMu.Lock()
	delete(e.speeds, id)
	e.speedMu.Unlock()
}
