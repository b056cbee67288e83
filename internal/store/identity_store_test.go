package store_test

import (
	"errors"
	"testing"

	"keymesh/internal/domain"
	"keymesh/internal/store"
)

func TestIdentity_SaveLoad_OK(t *testing.T) {
	home := t.TempDir()
	pass := "pass"

	var ids domain.IdentityStore = store.NewIdentityFileStore(home)

	id := domain.DeviceIdentity{
		DeviceID: "device-a",
		XPub:     domain.X25519Public{1},
		XPriv:    domain.X25519Private{2},
		EdPub:    domain.Ed25519Public{3},
		EdPriv:   domain.Ed25519Private{4},
	}

	if err := ids.SaveIdentity(pass, id); err != nil {
		t.Fatalf("save identity: %v", err)
	}

	got, err := ids.LoadIdentity(pass)
	if err != nil {
		t.Fatalf("load identity: %v", err)
	}
	if got.DeviceID != id.DeviceID || got.XPub != id.XPub || got.EdPub != id.EdPub || got.XPriv != id.XPriv {
		t.Fatalf("mismatch after load")
	}
}

func TestIdentity_WrongPassphrase_Fails(t *testing.T) {
	home := t.TempDir()
	var ids domain.IdentityStore = store.NewIdentityFileStore(home)

	id := domain.DeviceIdentity{DeviceID: "device-a", XPub: domain.X25519Public{1}, XPriv: domain.X25519Private{2}}

	if err := ids.SaveIdentity("correct", id); err != nil {
		t.Fatalf("save identity: %v", err)
	}
	if _, err := ids.LoadIdentity("wrong"); !errors.Is(err, store.ErrWrongPassphrase) {
		t.Fatalf("expected ErrWrongPassphrase, got %v", err)
	}
}

func TestIdentity_MissingFile(t *testing.T) {
	ids := store.NewIdentityFileStore(t.TempDir())

	ok, err := ids.HasIdentity()
	if err != nil {
		t.Fatalf("HasIdentity: %v", err)
	}
	if ok {
		t.Fatal("reported identity before one was created")
	}
	if _, err := ids.LoadIdentity("pass"); !errors.Is(err, domain.ErrNoIdentity) {
		t.Fatalf("expected ErrNoIdentity, got %v", err)
	}
}
