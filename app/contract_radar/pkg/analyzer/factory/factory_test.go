package factory

import (
	"context"
	"testing"

	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/config"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LLMConfig
		wantModel string
		wantErr   bool
	}{
		{"mock", config.LLMConfig{Provider: "mock"}, "mock", false},
		{"unknown provider", config.LLMConfig{Provider: "carrier-pigeon"}, "", true},
		{"gemini without key", config.LLMConfig{Provider: "gemini", Model: "gemini-2.5-flash"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && c.Model() != tt.wantModel {
				t.Errorf("Model = %q, want %q", c.Model(), tt.wantModel)
			}
		})
	}
}
