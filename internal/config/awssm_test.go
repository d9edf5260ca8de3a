package config

import "testing"

func TestResolveAWSSecretsManagerWithoutCredentials(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	if _, err := ResolveValue("${AWS_SM:kylin/admin#password}"); err == nil {
		t.Error("expected error when AWS credentials are not configured")
	}
}

func TestSecretField(t *testing.T) {
	secret := `{"username":"ADMIN","password":"KYLIN","port":7070}`

	val, err := secretField(secret, "password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "KYLIN" {
		t.Errorf("expected KYLIN, got %q", val)
	}

	for _, key := range []string{"missing", "port"} {
		if _, err := secretField(secret, key); err == nil {
			t.Errorf("secretField(%q): expected error", key)
		}
	}
	if _, err := secretField("plain", "password"); err == nil {
		t.Error("expected error for non-JSON secret")
	}
}
