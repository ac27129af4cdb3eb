package ocppadapter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ocpp-csms/central-system/internal/connection"
)

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name      string
		requested []string
		want      connection.Version
	}{
		{"no header defaults to 1.6", nil, connection.Version16},
		{"empty list defaults to 1.6", []string{}, connection.Version16},
		{"single supported match", []string{"ocpp1.6"}, connection.Version16},
		{"picks first in client order", []string{"ocpp1.6", "ocpp2.0.1"}, connection.Version16},
		{"picks first in client order reversed", []string{"ocpp2.0.1", "ocpp1.6"}, connection.Version201},
		{"unrecognized falls back to lowest supported", []string{"ocpp0.9"}, connection.Version16},
		{"mixed unrecognized and recognized picks the recognized one", []string{"ocpp0.9", "ocpp2.0.1"}, connection.Version201},
		{"case insensitive", []string{"OCPP2.0.1"}, connection.Version201},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Negotiate(tt.requested)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVersionToSubprotocol(t *testing.T) {
	assert.Equal(t, "ocpp1.6", VersionToSubprotocol(connection.Version16))
	assert.Equal(t, "ocpp2.0.1", VersionToSubprotocol(connection.Version201))
}
