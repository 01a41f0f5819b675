package main

import (
	"context"
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestRootCommandTree(t *testing.T) {
	c := qt.New(t)
	root := newRootCommand()

	var names []string
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}
	c.Assert(names, qt.Contains, "writer")
	c.Assert(names, qt.Contains, "projector")
	c.Assert(names, qt.Contains, "relay")
	c.Assert(names, qt.Contains, "standalone")
	c.Assert(root.PersistentFlags().Lookup("config"), qt.IsNotNil)

	writer, _, err := root.Find([]string{"writer"})
	c.Assert(err, qt.IsNil)
	c.Assert(writer.Flags().Lookup(httpAddrFlag), qt.IsNotNil)
}

func TestListenAddr(t *testing.T) {
	c := qt.New(t)
	c.Assert(listenAddr(":9000", ":7000", ":8080"), qt.Equals, ":9000")
	c.Assert(listenAddr("", ":7000", ":8080"), qt.Equals, ":7000")
	c.Assert(listenAddr("", "", ":8080"), qt.Equals, ":8080")
}

func TestRunAllCancelsSiblingsOnFailure(t *testing.T) {
	c := qt.New(t)
	stopped := make(chan struct{})

	err := runAll(context.Background(),
		func(ctx context.Context) error {
			<-ctx.Done()
			close(stopped)
			return nil
		},
		func(context.Context) error { return errors.New("listen tcp: address in use") },
	)
	c.Assert(err, qt.ErrorMatches, "listen tcp: address in use")

	select {
	case <-stopped:
	case <-time.After(time.Second):
		c.Fatal("sibling was not cancelled")
	}
}

func TestRunAllReturnsNilOnCancel(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runAll(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	c.Assert(err, qt.IsNil)
}
