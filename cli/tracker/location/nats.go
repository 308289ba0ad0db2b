package location

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/daniil11ru/fieldnav/cli/tracker/types"
)

const (
	SubjectFix        = "fix"
	SubjectCurrent    = "current"
	SubjectPermission = "permission"

	PermissionGranted = "granted"
	PermissionDenied  = "denied"
)

// PermissionReply ответ моста GPS на запрос разрешения
type PermissionReply struct {
	Status string `json:"status"`
}

var now = time.Now // For mocking time.Now() in tests

type Options struct {
	SubjectPrefix  string
	MinInterval    time.Duration
	MinDistance    float64
	RequestTimeout time.Duration
}

// NATS получает фиксации от моста GPS устройства через NATS.
//
// Подписки:
//
//	<prefix>.fix         поток фиксаций
//	<prefix>.current     запрос-ответ текущей позиции
//	<prefix>.permission  запрос-ответ разрешения на геолокацию
type NATS struct {
	conn    *nats.Conn
	options Options

	mu         sync.Mutex
	sub        *nats.Subscription
	generation uint64
	throttle   *Throttle
}

var _ Provider = (*NATS)(nil)

func NewNATS(conn *nats.Conn, options Options) *NATS {
	if options.SubjectPrefix == "" {
		options.SubjectPrefix = "gps"
	}
	if options.MinInterval <= 0 {
		options.MinInterval = DefaultMinInterval
	}
	if options.MinDistance <= 0 {
		options.MinDistance = DefaultMinDistance
	}
	if options.RequestTimeout <= 0 {
		options.RequestTimeout = 5 * time.Second
	}
	return &NATS{conn: conn, options: options, throttle: NewThrottle(options.MinInterval, options.MinDistance)}
}

func Subject(prefix, name string) string {
	return prefix + "." + name
}

func (p *NATS) subject(name string) string {
	return Subject(p.options.SubjectPrefix, name)
}

func (p *NATS) request(ctx context.Context, name string) (*nats.Msg, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.options.RequestTimeout)
		defer cancel()
	}
	return p.conn.RequestWithContext(ctx, p.subject(name), nil)
}

func (p *NATS) RequestPermission(ctx context.Context) error {
	msg, err := p.request(ctx, SubjectPermission)
	if err != nil {
		return &types.PermissionError{Err: fmt.Errorf("мост GPS не ответил: %w", err)}
	}

	var reply PermissionReply
	if err = json.Unmarshal(msg.Data, &reply); err != nil {
		return &types.PermissionError{Err: fmt.Errorf("некорректный ответ моста GPS: %w", err)}
	}
	if reply.Status != PermissionGranted {
		return &types.PermissionError{}
	}
	return nil
}

func (p *NATS) CurrentLocation(ctx context.Context) (*types.Location, error) {
	msg, err := p.request(ctx, SubjectCurrent)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить текущую позицию: %w", err)
	}
	loc, err := DecodeFix(msg.Data)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (p *NATS) StartTracking(onUpdate func(types.Location)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.unsubscribeLocked()
	p.generation++
	gen := p.generation
	p.throttle.Reset()

	sub, err := p.conn.Subscribe(p.subject(SubjectFix), func(msg *nats.Msg) {
		loc, err := DecodeFix(msg.Data)
		if err != nil {
			log.WithField("err", err).Warn("Отброшена некорректная фиксация")
			return
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.generation != gen || p.sub == nil {
			return
		}
		if !p.throttle.Accept(loc) {
			return
		}
		onUpdate(loc)
	})
	if err != nil {
		return fmt.Errorf("не удалось подписаться на %s: %w", p.subject(SubjectFix), err)
	}

	p.sub = sub
	log.Debugf("Подписка на фиксации %s", p.subject(SubjectFix))
	return nil
}

func (p *NATS) StopTracking() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unsubscribeLocked()
}

func (p *NATS) unsubscribeLocked() {
	if p.sub == nil {
		return
	}
	if err := p.sub.Unsubscribe(); err != nil {
		log.WithField("err", err).Warn("Не удалось отписаться от фиксаций")
	}
	p.sub = nil
	p.generation++
}

// DecodeFix разбирает фиксацию, при отсутствии времени подставляет текущее
func DecodeFix(data []byte) (types.Location, error) {
	var loc types.Location
	if err := json.Unmarshal(data, &loc); err != nil {
		return loc, fmt.Errorf("не удалось разобрать фиксацию: %w", err)
	}
	if err := loc.Validate(); err != nil {
		return loc, err
	}
	if loc.Timestamp == 0 {
		loc.Timestamp = now().UnixMilli()
	}
	return loc, nil
}
