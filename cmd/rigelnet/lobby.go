package main

import (
	"context"
	"fmt"
	"io"
	"rigelnet/handler"
	"rigelnet/node"
	"rigelnet/objectmap"
	"time"

	"go.uber.org/zap"
)

// Handler indices. Both sides register in this order; the numbers are the
// wire contract between a lobby server and its players.
const (
	idxSay       uint32 = iota + 1 // player → server: text
	idxSaid                        // server → players: slot, text
	idxPing                        // player → server: sentAt unix nanos
	idxPong                        // server → player: echoed sentAt
	idxSpawn                       // player → server: name
	idxSpawned                     // server → players: id, name
	idxDespawn                     // player → server: id
	idxDespawned                   // server → players: id
)

// lobby is the server side: it relays chat and owns spawned objects.
type lobby struct {
	srv *node.Server
	log *zap.Logger
}

func (l *lobby) register(reg *handler.Registry) error {
	entries := []handler.Entry{
		{Index: idxSay, Name: "say", Arity: 1, Func: l.say},
		{Index: idxPing, Name: "ping", Arity: 1, Func: l.ping},
		{Index: idxSpawn, Name: "spawn", Arity: 1, Func: l.spawn},
		{Index: idxDespawn, Name: "despawn", Arity: 1, Func: l.despawn},
	}
	for _, e := range entries {
		if err := reg.RegisterEntry(e); err != nil {
			return err
		}
	}
	return nil
}

func (l *lobby) say(_ context.Context, req *handler.Request) error {
	var text string
	if err := req.Call.Args.Scan(&text); err != nil {
		return err
	}
	return l.srv.Broadcast(idxSaid, req.Sender.Slot(), text)
}

func (l *lobby) ping(_ context.Context, req *handler.Request) error {
	var sentAt int64
	if err := req.Call.Args.Scan(&sentAt); err != nil {
		return err
	}
	return req.Node.Send(req.Sender, idxPong, sentAt)
}

func (l *lobby) spawn(_ context.Context, req *handler.Request) error {
	var name string
	if err := req.Call.Args.Scan(&name); err != nil {
		return err
	}
	id, err := l.srv.Objects().Publish(fmt.Sprintf("%d/%s", req.Sender.Slot(), name))
	if err != nil {
		return err
	}
	l.log.Info("spawned", zap.Uint32("id", uint32(id)), zap.String("name", name), zap.Int("slot", req.Sender.Slot()))
	return l.srv.Broadcast(idxSpawned, uint32(id), name)
}

func (l *lobby) despawn(_ context.Context, req *handler.Request) error {
	var id uint32
	if err := req.Call.Args.Scan(&id); err != nil {
		return err
	}
	if !l.srv.Objects().Withdraw(objectmap.ID(id)) {
		// Already gone; a late despawn is not an error.
		return nil
	}
	return l.srv.Broadcast(idxDespawned, id)
}

// player is the client side: it prints what the lobby sends.
type player struct {
	out   io.Writer
	clock func() time.Time
}

func (p *player) register(reg *handler.Registry) error {
	entries := []handler.Entry{
		{Index: idxSaid, Name: "said", Arity: 2, Func: p.said},
		{Index: idxPong, Name: "pong", Arity: 1, Func: p.pong},
		{Index: idxSpawned, Name: "spawned", Arity: 2, Func: p.spawned},
		{Index: idxDespawned, Name: "despawned", Arity: 1, Func: p.despawned},
	}
	for _, e := range entries {
		if err := reg.RegisterEntry(e); err != nil {
			return err
		}
	}
	return nil
}

func (p *player) said(_ context.Context, req *handler.Request) error {
	var (
		slot int
		text string
	)
	if err := req.Call.Args.Scan(&slot, &text); err != nil {
		return err
	}
	fmt.Fprintf(p.out, "[slot %d] %s\n", slot, text)
	return nil
}

func (p *player) pong(_ context.Context, req *handler.Request) error {
	var sentAt int64
	if err := req.Call.Args.Scan(&sentAt); err != nil {
		return err
	}
	fmt.Fprintf(p.out, "pong in %s\n", p.clock().Sub(time.Unix(0, sentAt)))
	return nil
}

func (p *player) spawned(_ context.Context, req *handler.Request) error {
	var (
		id   uint32
		name string
	)
	if err := req.Call.Args.Scan(&id, &name); err != nil {
		return err
	}
	fmt.Fprintf(p.out, "spawned #%d %s\n", id, name)
	return nil
}

func (p *player) despawned(_ context.Context, req *handler.Request) error {
	var id uint32
	if err := req.Call.Args.Scan(&id); err != nil {
		return err
	}
	fmt.Fprintf(p.out, "despawned #%d\n", id)
	return nil
}
