package services

import (
	"testing"

	"valuemetrix/internal/identity"
	"valuemetrix/internal/testutil"
)

func TestResolveExternalIdentity(t *testing.T) {
	t.Run("creates_user_on_first_sign_in", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)

		user, err := svc.ResolveExternalIdentity(&identity.ExternalIdentity{
			Subject:   "google-sub-1",
			Email:     "New.Signup@Test.com",
			Name:      "New Signup",
			AvatarURL: "https://example.com/a.png",
		})
		testutil.AssertNoError(t, err)

		if user.ID == "" {
			t.Fatal("expected user ID to be set")
		}
		if user.Email != "new.signup@test.com" {
			t.Errorf("expected lowercased email, got %s", user.Email)
		}
		if user.Name != "New Signup" {
			t.Errorf("expected name to be stored, got %s", user.Name)
		}
	})

	t.Run("reuses_existing_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)
		existing := testutil.CreateTestUserWithEmail(t, db, "repeat@test.com")

		user, err := svc.ResolveExternalIdentity(&identity.ExternalIdentity{
			Subject: "google-sub-2",
			Email:   "repeat@test.com",
			Name:    existing.Name,
		})
		testutil.AssertNoError(t, err)

		if user.ID != existing.ID {
			t.Errorf("expected existing user %s, got %s", existing.ID, user.ID)
		}
	})

	t.Run("refreshes_profile_fields", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)
		existing := testutil.CreateTestUserWithEmail(t, db, "rename@test.com")

		user, err := svc.ResolveExternalIdentity(&identity.ExternalIdentity{
			Subject:   "google-sub-3",
			Email:     "rename@test.com",
			Name:      "Renamed Person",
			AvatarURL: "https://example.com/new.png",
		})
		testutil.AssertNoError(t, err)

		if user.ID != existing.ID {
			t.Fatalf("expected same user, got %s", user.ID)
		}

		fresh, err := svc.GetUserByID(existing.ID)
		testutil.AssertNoError(t, err)
		if fresh.Name != "Renamed Person" {
			t.Errorf("expected refreshed name, got %s", fresh.Name)
		}
		if fresh.AvatarURL != "https://example.com/new.png" {
			t.Errorf("expected refreshed avatar, got %s", fresh.AvatarURL)
		}
	})

	t.Run("rejects_identity_without_email", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)

		_, err := svc.ResolveExternalIdentity(&identity.ExternalIdentity{Subject: "google-sub-4"})
		testutil.AssertAppError(t, err, "INVALID_IDENTITY")
	})
}

func TestGetUserByEmail(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)
		existing := testutil.CreateTestUserWithEmail(t, db, "lookup@test.com")

		user, err := svc.GetUserByEmail("Lookup@Test.com")
		testutil.AssertNoError(t, err)
		if user.ID != existing.ID {
			t.Errorf("expected user %s, got %s", existing.ID, user.ID)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)

		_, err := svc.GetUserByEmail("nobody-here@test.com")
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})
}
