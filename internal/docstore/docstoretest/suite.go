// Package docstoretest holds a behavior suite shared by every docstore.Store backend.
package docstoretest

import (
	"context"
	"errors"

	"babyofficehours/internal/docstore"

	"github.com/stretchr/testify/suite"
)

// StoreSuite exercises a docstore.Store. Embed it and set NewStore.
type StoreSuite struct {
	suite.Suite
	NewStore func() docstore.Store

	store docstore.Store
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.NewStore()
}

func (s *StoreSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *StoreSuite) TestGetMissing() {
	_, err := s.store.Get(s.ctx, "babies", "missing")
	s.ErrorIs(err, docstore.ErrNotFound)
}

func (s *StoreSuite) TestPutGetReplace() {
	s.Require().NoError(s.store.Put(s.ctx, "babies", "b1", []byte(`{"name":"Emma"}`)))
	got, err := s.store.Get(s.ctx, "babies", "b1")
	s.Require().NoError(err)
	s.JSONEq(`{"name":"Emma"}`, string(got))

	s.Require().NoError(s.store.Put(s.ctx, "babies", "b1", []byte(`{"name":"Ava"}`)))
	got, err = s.store.Get(s.ctx, "babies", "b1")
	s.Require().NoError(err)
	s.JSONEq(`{"name":"Ava"}`, string(got))
}

func (s *StoreSuite) TestCollectionsAreSeparate() {
	s.Require().NoError(s.store.Put(s.ctx, "babies", "x", []byte(`{"kind":"baby"}`)))
	s.Require().NoError(s.store.Put(s.ctx, "invites", "x", []byte(`{"kind":"invite"}`)))

	got, err := s.store.Get(s.ctx, "invites", "x")
	s.Require().NoError(err)
	s.JSONEq(`{"kind":"invite"}`, string(got))
}

func (s *StoreSuite) TestListOrderedByID() {
	for _, id := range []string{"c", "a", "b"} {
		s.Require().NoError(s.store.Put(s.ctx, "users", id, []byte(`{}`)))
	}
	docs, err := s.store.List(s.ctx, "users")
	s.Require().NoError(err)
	s.Require().Len(docs, 3)
	s.Equal("a", docs[0].ID)
	s.Equal("b", docs[1].ID)
	s.Equal("c", docs[2].ID)
	s.Equal("users", docs[0].Collection)

	empty, err := s.store.List(s.ctx, "nothing")
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *StoreSuite) TestDelete() {
	s.Require().NoError(s.store.Put(s.ctx, "invites", "i1", []byte(`{}`)))
	s.Require().NoError(s.store.Delete(s.ctx, "invites", "i1"))
	_, err := s.store.Get(s.ctx, "invites", "i1")
	s.ErrorIs(err, docstore.ErrNotFound)

	s.NoError(s.store.Delete(s.ctx, "invites", "i1"))
}

func (s *StoreSuite) TestUpdateCommits() {
	err := s.store.Update(s.ctx, func(tx docstore.Tx) error {
		if err := tx.Put(s.ctx, "babies", "b1", []byte(`{"n":1}`)); err != nil {
			return err
		}
		got, err := tx.Get(s.ctx, "babies", "b1")
		if err != nil {
			return err
		}
		s.JSONEq(`{"n":1}`, string(got))
		return tx.Put(s.ctx, "invites", "i1", []byte(`{"n":2}`))
	})
	s.Require().NoError(err)

	_, err = s.store.Get(s.ctx, "babies", "b1")
	s.NoError(err)
	_, err = s.store.Get(s.ctx, "invites", "i1")
	s.NoError(err)
}

func (s *StoreSuite) TestUpdateRollsBack() {
	s.Require().NoError(s.store.Put(s.ctx, "babies", "b1", []byte(`{"n":1}`)))
	boom := errors.New("boom")

	err := s.store.Update(s.ctx, func(tx docstore.Tx) error {
		if err := tx.Put(s.ctx, "babies", "b1", []byte(`{"n":2}`)); err != nil {
			return err
		}
		if err := tx.Put(s.ctx, "invites", "i1", []byte(`{}`)); err != nil {
			return err
		}
		if err := tx.Delete(s.ctx, "babies", "b1"); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.store.Get(s.ctx, "babies", "b1")
	s.Require().NoError(err)
	s.JSONEq(`{"n":1}`, string(got))
	_, err = s.store.Get(s.ctx, "invites", "i1")
	s.ErrorIs(err, docstore.ErrNotFound)
}
