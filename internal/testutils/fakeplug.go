package testutils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/srg/plugmini/internal/device"
)

// Plug GATT layout
const (
	PlugServiceUUID        = "cba20d00-224d-11e6-9fb8-0002a5d5c51b"
	PlugWriteEndpointUUID  = "cba20002-224d-11e6-9fb8-0002a5d5c51b"
	PlugNotifyEndpointUUID = "cba20003-224d-11e6-9fb8-0002a5d5c51b"
)

// Request frames understood by FakePlug
var (
	FrameGetPower = []byte{0x57, 0x0f, 0x51, 0x01}
	FrameSetOn    = []byte{0x57, 0x0f, 0x50, 0x01, 0x01, 0x80}
	FrameSetOff   = []byte{0x57, 0x0f, 0x50, 0x01, 0x01, 0x00}
	FrameToggle   = []byte{0x57, 0x0f, 0x50, 0x01, 0x02, 0x80}
)

// ErrNoPeripheral is returned by FakePlug.Dial for unknown addresses
var ErrNoPeripheral = errors.New("no peripheral at address")

// FakePlug is an in-memory device.Transport hosting one plug.
//
// Scans deliver the configured advertisements and then block until the scan
// context ends. Dials to the plug address yield a link whose write endpoint
// answers request frames on the notify endpoint from a separate goroutine,
// the way a radio stack delivers notifications.
type FakePlug struct {
	mu sync.Mutex

	address        string
	on             bool
	stuck          bool
	advertisements []device.Advertisement

	scanErr      error
	dialErr      error
	dialDelay    time.Duration
	subscribeErr error
	writeErr     error

	noService      bool
	noWrite        bool
	noNotify       bool
	notifyProps    device.Property
	reportsDrop    bool
	silent         bool
	fixedReply     []byte
	replyDelay     time.Duration
	extraReplies   int
	writes         [][]byte
	dials          int
	scans          int
	closedLinks    int
	unsubscribes   int
	closed         bool
	current        *fakeLink
	pendingReplies sync.WaitGroup
}

// NewFakePlug creates a plug at address that advertises itself and starts off
func NewFakePlug(address string) *FakePlug {
	return &FakePlug{
		address:        address,
		advertisements: []device.Advertisement{NewPlugAdvertisement(address).Build()},
		notifyProps:    device.PropRead | device.PropNotify,
	}
}

// Address returns the plug address
func (p *FakePlug) Address() string { return p.address }

// WithPower sets the initial relay state
func (p *FakePlug) WithPower(on bool) *FakePlug {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.on = on
	return p
}

// WithAdvertisements replaces what scans report
func (p *FakePlug) WithAdvertisements(ads ...device.Advertisement) *FakePlug {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advertisements = ads
	return p
}

// WithScanError makes scans fail to start
func (p *FakePlug) WithScanError(err error) *FakePlug {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scanErr = err
	return p
}

// WithDialError makes dials fail
func (p *FakePlug) WithDialError(err error) *FakePlug {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialErr = err
	return p
}

// WithDialDelay makes dials block for d (or until ctx ends)
func (p *FakePlug) WithDialDelay(d time.Duration) *FakePlug {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialDelay = d
	return p
}

// WithoutService hides the plug service
func (p *FakePlug) WithoutService() *FakePlug {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.noService = true
	return p
}

// WithoutWriteEndpoint hides the write endpoint
func (p *FakePlug) WithoutWriteEndpoint() *FakePlug {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.noWrite = true
	return p
}

// WithoutNotifyEndpoint hides the notify endpoint
func (p *FakePlug) WithoutNotifyEndpoint() *FakePlug {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.noNotify = true
	return p
}

// WithNotifyProperties overrides the notify endpoint properties
func (p *FakePlug) WithNotifyProperties(props device.Property) *FakePlug {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifyProps = props
	return p
}

// WithSubscribeError makes notify subscription fail
func (p *FakePlug) WithSubscribeError(err error) *FakePlug {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribeErr = err
	return p
}

// WithWriteError makes frame writes fail
func (p *FakePlug) WithWriteError(err error) *FakePlug {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
	return p
}

// WithDisconnectReporting makes links expose a Disconnected channel
func (p *FakePlug) WithDisconnectReporting() *FakePlug {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reportsDrop = true
	return p
}

// WithSilence makes the plug never answer
func (p *FakePlug) WithSilence(silent bool) *FakePlug {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.silent = silent
	return p
}

// WithFixedReply makes the plug answer every frame with reply
func (p *FakePlug) WithFixedReply(reply []byte) *FakePlug {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fixedReply = reply
	return p
}

// WithStuckRelay makes set and toggle requests leave the relay unchanged
func (p *FakePlug) WithStuckRelay() *FakePlug {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stuck = true
	return p
}

// WithReplyDelay delays every answer by d
func (p *FakePlug) WithReplyDelay(d time.Duration) *FakePlug {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replyDelay = d
	return p
}

// WithDuplicateReplies sends n extra copies of every answer
func (p *FakePlug) WithDuplicateReplies(n int) *FakePlug {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.extraReplies = n
	return p
}

// IsOn returns the relay state
func (p *FakePlug) IsOn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.on
}

// Writes returns every frame written so far
func (p *FakePlug) Writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.writes))
	copy(out, p.writes)
	return out
}

// Dials returns the number of dial attempts
func (p *FakePlug) Dials() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dials
}

// Scans returns the number of scans run
func (p *FakePlug) Scans() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scans
}

// ClosedLinks returns how many links were closed
func (p *FakePlug) ClosedLinks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closedLinks
}

// Unsubscribes returns how many notify unsubscriptions were made
func (p *FakePlug) Unsubscribes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unsubscribes
}

// Connected reports whether a link is open
func (p *FakePlug) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil && !p.current.closed
}

// Closed reports whether Close was called
func (p *FakePlug) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Push sends an unsolicited notification on the open link
func (p *FakePlug) Push(data []byte) bool {
	p.mu.Lock()
	link := p.current
	p.mu.Unlock()
	if link == nil {
		return false
	}
	return link.notify(data)
}

// DropLink simulates the peripheral going away
func (p *FakePlug) DropLink() {
	p.mu.Lock()
	link := p.current
	p.mu.Unlock()
	if link != nil {
		link.drop()
	}
}

// WaitReplies blocks until delayed answers have been delivered
func (p *FakePlug) WaitReplies() {
	p.pendingReplies.Wait()
}

// Scan implements device.Scanner
func (p *FakePlug) Scan(ctx context.Context, _ bool, handler func(device.Advertisement)) error {
	p.mu.Lock()
	p.scans++
	err := p.scanErr
	ads := append([]device.Advertisement(nil), p.advertisements...)
	p.mu.Unlock()

	if err != nil {
		return err
	}
	for _, adv := range ads {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		handler(adv)
	}
	<-ctx.Done()
	return ctx.Err()
}

// Dial implements device.Dialer
func (p *FakePlug) Dial(ctx context.Context, address string) (device.Link, error) {
	p.mu.Lock()
	p.dials++
	err, delay := p.dialErr, p.dialDelay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("dial %s: %w", address, ctx.Err())
		}
	}
	if err != nil {
		return nil, err
	}
	if address != p.address {
		return nil, fmt.Errorf("%w: %s", ErrNoPeripheral, address)
	}

	link := &fakeLink{plug: p, done: make(chan struct{})}
	p.mu.Lock()
	p.current = link
	p.mu.Unlock()
	return link, nil
}

// Close releases the transport
func (p *FakePlug) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// answer computes the reply to frame and applies its effect
func (p *FakePlug) answer(frame []byte) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.silent {
		return nil, false
	}
	if p.fixedReply != nil {
		return append([]byte(nil), p.fixedReply...), true
	}

	switch {
	case bytes.Equal(frame, FrameGetPower):
	case bytes.Equal(frame, FrameSetOn):
		if !p.stuck {
			p.on = true
		}
	case bytes.Equal(frame, FrameSetOff):
		if !p.stuck {
			p.on = false
		}
	case bytes.Equal(frame, FrameToggle):
		if !p.stuck {
			p.on = !p.on
		}
	default:
		return nil, false
	}

	state := byte(0x00)
	if p.on {
		state = 0x80
	}
	return []byte{0x01, state}, true
}

type fakeLink struct {
	plug *FakePlug

	mu      sync.Mutex
	handler func([]byte)
	closed  bool
	done    chan struct{}
	dropped bool
}

func (l *fakeLink) Address() string { return l.plug.address }

func (l *fakeLink) Service(uuid string) (device.RemoteService, error) {
	l.plug.mu.Lock()
	hidden := l.plug.noService
	l.plug.mu.Unlock()

	if hidden || !device.SameUUID(uuid, PlugServiceUUID) {
		return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{uuid}}
	}
	return &fakeService{link: l}, nil
}

func (l *fakeLink) Disconnected() <-chan struct{} {
	l.plug.mu.Lock()
	defer l.plug.mu.Unlock()
	if !l.plug.reportsDrop {
		return nil
	}
	return l.done
}

func (l *fakeLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.handler = nil

	l.plug.mu.Lock()
	l.plug.closedLinks++
	if l.plug.current == l {
		l.plug.current = nil
	}
	l.plug.mu.Unlock()
	return nil
}

func (l *fakeLink) drop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dropped {
		return
	}
	l.dropped = true
	l.handler = nil
	close(l.done)
}

func (l *fakeLink) notify(data []byte) bool {
	l.mu.Lock()
	h := l.handler
	l.mu.Unlock()
	if h == nil {
		return false
	}
	h(data)
	return true
}

type fakeService struct {
	link *fakeLink
}

func (s *fakeService) UUID() string { return device.NormalizeUUID(PlugServiceUUID) }

func (s *fakeService) Characteristic(uuid string) (device.RemoteCharacteristic, error) {
	p := s.link.plug
	p.mu.Lock()
	noWrite, noNotify, props := p.noWrite, p.noNotify, p.notifyProps
	p.mu.Unlock()

	switch {
	case device.SameUUID(uuid, PlugWriteEndpointUUID) && !noWrite:
		return &fakeCharacteristic{link: s.link, uuid: uuid, props: device.PropWrite | device.PropWriteWithoutResponse}, nil
	case device.SameUUID(uuid, PlugNotifyEndpointUUID) && !noNotify:
		return &fakeCharacteristic{link: s.link, uuid: uuid, props: props}, nil
	}
	return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{PlugServiceUUID, uuid}}
}

type fakeCharacteristic struct {
	link  *fakeLink
	uuid  string
	props device.Property
}

func (c *fakeCharacteristic) UUID() string               { return device.NormalizeUUID(c.uuid) }
func (c *fakeCharacteristic) Properties() device.Property { return c.props }

func (c *fakeCharacteristic) CanNotify() bool {
	return c.props.Has(device.PropNotify) || c.props.Has(device.PropIndicate)
}

func (c *fakeCharacteristic) Write(data []byte, _ bool) error {
	p := c.link.plug
	p.mu.Lock()
	p.writes = append(p.writes, append([]byte(nil), data...))
	err, delay, extra := p.writeErr, p.replyDelay, p.extraReplies
	p.mu.Unlock()

	if err != nil {
		return err
	}

	reply, ok := p.answer(data)
	if !ok {
		return nil
	}

	p.pendingReplies.Add(1)
	go func() {
		defer p.pendingReplies.Done()
		if delay > 0 {
			time.Sleep(delay)
		}
		for i := 0; i <= extra; i++ {
			c.link.notify(reply)
		}
	}()
	return nil
}

func (c *fakeCharacteristic) Subscribe(handler func([]byte)) error {
	p := c.link.plug
	p.mu.Lock()
	err := p.subscribeErr
	p.mu.Unlock()
	if err != nil {
		return err
	}

	c.link.mu.Lock()
	c.link.handler = handler
	c.link.mu.Unlock()
	return nil
}

func (c *fakeCharacteristic) Unsubscribe() error {
	c.link.mu.Lock()
	c.link.handler = nil
	c.link.mu.Unlock()

	p := c.link.plug
	p.mu.Lock()
	p.unsubscribes++
	p.mu.Unlock()
	return nil
}
