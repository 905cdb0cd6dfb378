package mysql

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/credentials"
)

func TestBuildIAMToken(t *testing.T) {
	creds := credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "SECRETEXAMPLE", "")
	cfg := ConnectionConfig{Host: "db.abc123.us-east-1.rds.amazonaws.com", Port: 3306, User: "converter"}

	token, err := buildIAMToken(context.Background(), cfg, "us-east-1", creds)
	if err != nil {
		t.Fatalf("buildIAMToken() error = %v", err)
	}

	for _, want := range []string{
		"db.abc123.us-east-1.rds.amazonaws.com:3306",
		"Action=connect",
		"DBUser=converter",
		"X-Amz-Signature=",
	} {
		if !strings.Contains(token, want) {
			t.Errorf("token missing %q: %s", want, token)
		}
	}
}

func TestBuildIAMToken_Socket(t *testing.T) {
	creds := credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "SECRETEXAMPLE", "")
	_, err := buildIAMToken(context.Background(), ConnectionConfig{Socket: "/tmp/mysql.sock"}, "us-east-1", creds)
	if err == nil {
		t.Fatal("expected error for socket connection")
	}
}

func TestIAMToken_RequiresRegion(t *testing.T) {
	if _, err := IAMToken(context.Background(), ConnectionConfig{Host: "h", Port: 3306}, ""); err == nil {
		t.Fatal("expected error without region")
	}
}

func TestWithIAMToken(t *testing.T) {
	tests := []struct {
		mode string
		want string
	}{
		{"", "required"},
		{"disabled", "required"},
		{"preferred", "required"},
		{"skip-verify", "skip-verify"},
		{"custom", "custom"},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			got := WithIAMToken(ConnectionConfig{TLSMode: tt.mode, Password: "old"}, "token")
			if got.Password != "token" {
				t.Errorf("Password = %q, want token", got.Password)
			}
			if !got.AllowCleartext {
				t.Error("AllowCleartext should be set")
			}
			if got.TLSMode != tt.want {
				t.Errorf("TLSMode = %q, want %q", got.TLSMode, tt.want)
			}
		})
	}
}
