package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("STORAGE_DRIVER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("expected listen addr :8080, got %q", cfg.ListenAddr)
	}
	if cfg.StorageDriver != "local" {
		t.Fatalf("expected local storage, got %q", cfg.StorageDriver)
	}
	if cfg.MaxUploadBytes() != 5<<20 {
		t.Fatalf("unexpected max upload bytes %d", cfg.MaxUploadBytes())
	}
}

func TestLoadDerivesListenAddrFromPort(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("UPLOAD_URL_PATH", "media/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("expected :9090, got %q", cfg.ListenAddr)
	}
	if cfg.UploadURLPath != "/media" {
		t.Fatalf("expected normalized upload url path, got %q", cfg.UploadURLPath)
	}
}

func TestLoadRejectsS3WithoutBucket(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "s3")
	t.Setenv("S3_BUCKET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for s3 driver without bucket")
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "ftp")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown storage driver")
	}
}
