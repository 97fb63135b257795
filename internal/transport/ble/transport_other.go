//go:build !linux

package ble

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"bitchat/internal/domain"
)

// NewCentral reports that the central role is unsupported on this platform.
func NewCentral(connectTimeout time.Duration, log zerolog.Logger) (domain.Central, error) {
	return nil, fmt.Errorf("ble: central role requires linux")
}

// NewPeripheral returns an advertiser whose Advertise always reports
// domain.ErrAdvertisingUnavailable, so the app degrades to initiator-only.
func NewPeripheral(log zerolog.Logger) domain.Advertiser {
	return unsupportedAdvertiser{}
}

type unsupportedAdvertiser struct{}

func (unsupportedAdvertiser) Advertise(context.Context, domain.Advertisement, domain.MessageSink) (<-chan error, error) {
	return nil, fmt.Errorf("%w: peripheral role requires linux", domain.ErrAdvertisingUnavailable)
}

func (unsupportedAdvertiser) Close() error { return nil }

var _ domain.Advertiser = unsupportedAdvertiser{}
