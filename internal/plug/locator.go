package plug

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/plugmini/internal/device"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Advertisement signature of the plug
const (
	VendorID0          byte = 0x69
	VendorID1          byte = 0x09
	ModelMarker        byte = 'j'
	ManufacturerDataLen     = 14

	DefaultScanDuration = 3 * time.Second
)

// Candidate is a plug seen during a scan
type Candidate struct {
	Address          string
	Name             string
	RSSI             int
	ManufacturerData []byte
	Advertisement    device.Advertisement
}

// Locator finds plugs by scanning advertisements
type Locator struct {
	scanner device.Scanner
	logger  *logrus.Logger

	scanMu  sync.Mutex // one scan at a time
	mu      sync.Mutex
	results *orderedmap.OrderedMap[string, Candidate]
	seen    int
}

// NewLocator creates a locator on top of scanner
func NewLocator(scanner device.Scanner, logger *logrus.Logger) *Locator {
	if logger == nil {
		logger = logrus.New()
	}

	return &Locator{
		scanner: scanner,
		logger:  logger,
		results: orderedmap.New[string, Candidate](),
	}
}

// Locate scans for up to duration and returns the advertisement of the plug at
// target. The scan stops at the first match. duration <= 0 uses DefaultScanDuration.
func (l *Locator) Locate(ctx context.Context, target string, duration time.Duration) (device.Advertisement, error) {
	var (
		matchMu sync.Mutex
		match   device.Advertisement
	)

	scanCtx, stop := context.WithCancel(ctx)
	defer stop()

	seen, err := l.scan(scanCtx, duration, nil, func(adv device.Advertisement) {
		if !MatchesTarget(adv, target) {
			return
		}
		matchMu.Lock()
		defer matchMu.Unlock()
		if match == nil {
			match = adv
			stop()
		}
	})

	matchMu.Lock()
	found := match
	matchMu.Unlock()

	if found != nil {
		l.logger.WithFields(logrus.Fields{
			"address": target,
			"rssi":    found.RSSI(),
		}).Info("Plug found")
		return found, nil
	}

	switch {
	case err != nil:
		return nil, newError(CodeDeviceNotFound, target, err)
	case ctx.Err() != nil:
		return nil, newError(CodeCanceled, target, ctx.Err())
	case seen == 0:
		return nil, newError(CodeDeviceNotFound, target, errors.New("no advertisements received"))
	default:
		return nil, newError(CodeDeviceNotFound, target, fmt.Errorf("no matching plug among %d advertisements", seen))
	}
}

// Discover scans for duration and returns every plug seen, in first-seen order
func (l *Locator) Discover(ctx context.Context, duration time.Duration) ([]Candidate, error) {
	var candidates []Candidate

	_, err := l.scan(ctx, duration, func(results *orderedmap.OrderedMap[string, Candidate]) {
		candidates = make([]Candidate, 0, results.Len())
		for pair := results.Oldest(); pair != nil; pair = pair.Next() {
			candidates = append(candidates, pair.Value)
		}
	}, nil)
	if err != nil {
		return nil, newError(CodeDeviceNotFound, "", err)
	}
	if ctx.Err() != nil {
		return candidates, newError(CodeCanceled, "", ctx.Err())
	}

	l.logger.WithField("plugs", len(candidates)).Info("Plug discovery completed")
	return candidates, nil
}

// Retained returns how many scan results are currently held
func (l *Locator) Retained() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.results.Len()
}

// scan runs one bounded scan. Plug candidates are collected into the result
// set, which is handed to collect (if non-nil) and cleared before returning.
// Returns the number of advertisements received and any scan failure.
func (l *Locator) scan(ctx context.Context, duration time.Duration, collect func(*orderedmap.OrderedMap[string, Candidate]), onAdv func(device.Advertisement)) (int, error) {
	if duration <= 0 {
		duration = DefaultScanDuration
	}

	l.scanMu.Lock()
	defer l.scanMu.Unlock()
	defer l.clearResults()

	scanCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	l.logger.WithField("duration", duration).Info("Starting plug scan...")

	err := l.scanner.Scan(scanCtx, true, func(adv device.Advertisement) {
		l.mu.Lock()
		l.seen++
		if IsPlugMini(adv) {
			if _, ok := l.results.Get(adv.Addr()); !ok {
				l.results.Set(adv.Addr(), Candidate{
					Address:          adv.Addr(),
					Name:             adv.LocalName(),
					RSSI:             adv.RSSI(),
					ManufacturerData: adv.ManufacturerData(),
					Advertisement:    adv,
				})
			}
		}
		l.mu.Unlock()

		if onAdv != nil {
			onAdv(adv)
		}
	})
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		err = nil
	}

	l.mu.Lock()
	seen := l.seen
	l.logger.WithFields(logrus.Fields{
		"advertisements": seen,
		"plugs":          l.results.Len(),
	}).Info("Plug scan completed")
	if collect != nil {
		collect(l.results)
	}
	l.mu.Unlock()

	if err != nil {
		return seen, fmt.Errorf("scan failed: %w", err)
	}
	return seen, nil
}

func (l *Locator) clearResults() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for pair := l.results.Oldest(); pair != nil; pair = l.results.Oldest() {
		l.results.Delete(pair.Key)
	}
	l.seen = 0
}

// HasVendorID reports whether manufacturer data carries the plug vendor identifier
func HasVendorID(adv device.Advertisement) bool {
	md := adv.ManufacturerData()
	return len(md) >= 2 && md[0] == VendorID0 && md[1] == VendorID1
}

// HasModelMarker reports whether the first service-data entry starts with the plug model marker
func HasModelMarker(adv device.Advertisement) bool {
	sd := adv.ServiceData()
	if len(sd) == 0 || len(sd[0].Data) == 0 {
		return false
	}
	return sd[0].Data[0] == ModelMarker
}

// HasPlugPayload reports whether manufacturer data has the plug's fixed length
func HasPlugPayload(adv device.Advertisement) bool {
	return len(adv.ManufacturerData()) == ManufacturerDataLen
}

// IsPlugMini applies the vendor, model and payload filters in order
func IsPlugMini(adv device.Advertisement) bool {
	return HasVendorID(adv) && HasModelMarker(adv) && HasPlugPayload(adv)
}

// MatchesTarget reports whether adv is a plug advertising from exactly target
func MatchesTarget(adv device.Advertisement, target string) bool {
	return IsPlugMini(adv) && adv.Addr() == target
}
