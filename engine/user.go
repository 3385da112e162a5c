package engine

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"hiitrack.dev/hash"
	"hiitrack.dev/store"
	"hiitrack.dev/utils/context"
)

// The single column on a user row.
var passwordCol = []byte("hash")

func userRow(user string) []byte { return hash.Strings(user) }

// The three-element tuple cannot collide with any two-element BucketID, so
// a bucket literally named "bucket" or "catalog" gets its own row.
func bucketCatalogRow(user string) []byte {
	return hash.Strings(user, "bucket", "catalog")
}

// CreateUser registers an account. Re-registration overwrites the password
// hash.
func (e *E) CreateUser(c context.T, user, password string) (err error) {
	if user == "" || password == "" {
		return fmt.Errorf("%w: user and password required", ErrBadRequest)
	}
	var hashed []byte
	if hashed, err = bcrypt.GenerateFromPassword(
		[]byte(password), bcrypt.DefaultCost,
	); err != nil {
		return
	}
	if err = e.Store.Insert(
		c, store.User, userRow(user), passwordCol, hashed, e.CL,
	); err != nil {
		return
	}
	e.lg.Info("user created", zap.String("user", user))
	return
}

// UserExists reports whether the account is registered.
func (e *E) UserExists(c context.T, user string) (ok bool, err error) {
	_, err = e.Store.Get(c, store.User, userRow(user), passwordCol, e.CL)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	}
	return
}

// Authenticate checks the password against the stored hash. An unknown user
// authenticates false without error.
func (e *E) Authenticate(c context.T, user, password string) (
	ok bool, err error,
) {
	hashed, err := e.Store.Get(
		c, store.User, userRow(user), passwordCol, e.CL,
	)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return
	}
	ok = bcrypt.CompareHashAndPassword(hashed, []byte(password)) == nil
	return
}

// DeleteUser removes the account and cascades every owned bucket.
func (e *E) DeleteUser(c context.T, user string) (err error) {
	buckets, err := e.Buckets(c, user)
	if err != nil {
		return
	}
	for _, b := range buckets {
		if err = e.DeleteBucket(c, user, b.Name); err != nil {
			return
		}
	}
	if err = e.Store.Remove(
		c, store.Relation, bucketCatalogRow(user), nil, e.CL,
	); err != nil {
		return
	}
	if err = e.Store.Remove(c, store.User, userRow(user), nil, e.CL); err != nil {
		return
	}
	e.lg.Info("user deleted", zap.String("user", user))
	return
}
