// Package registry tracks which connections are in which board room and
// delivers room-wide messages to them. Membership is in-process only; a
// restart drops every room and clients rejoin.
package registry

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/retroboard/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Peer is one client connection as seen by the registry.
type Peer interface {
	ID() string
	Identity() models.Identity
	// Send enqueues payload without blocking. It returns false when the peer
	// cannot take more messages or is already closed.
	Send(payload []byte) bool
}

// Delivery is a payload addressed to every peer in a room except, optionally,
// one excluded peer.
type Delivery struct {
	BoardID       uuid.UUID
	Payload       []byte
	ExcludePeerID string
}

// Stats summarises current membership.
type Stats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveBoards     int            `json:"active_boards"`
	BoardConnections map[string]int `json:"board_connections"`
}

// Registry maps rooms to peers and peers to rooms.
type Registry struct {
	mu          sync.RWMutex
	rooms       map[uuid.UUID]map[string]Peer
	memberships map[string]map[uuid.UUID]struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		rooms:       make(map[uuid.UUID]map[string]Peer),
		memberships: make(map[string]map[uuid.UUID]struct{}),
	}
}

// Join adds peer to the board room. It reports whether the peer was newly
// added; joining twice is a no-op.
func (r *Registry) Join(peer Peer, boardID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[boardID]
	if !ok {
		room = make(map[string]Peer)
		r.rooms[boardID] = room
	}
	if _, exists := room[peer.ID()]; exists {
		return false
	}
	room[peer.ID()] = peer

	boards, ok := r.memberships[peer.ID()]
	if !ok {
		boards = make(map[uuid.UUID]struct{})
		r.memberships[peer.ID()] = boards
	}
	boards[boardID] = struct{}{}

	log.Debug().
		Str("connection_id", peer.ID()).
		Str("board_id", boardID.String()).
		Int("room_size", len(room)).
		Msg("peer joined room")
	return true
}

// Leave removes peer from the board room and reports whether it was a member.
func (r *Registry) Leave(peer Peer, boardID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.leaveLocked(peer.ID(), boardID)
}

// Disconnect removes peer from every room it joined and returns those rooms,
// each exactly once. A second call returns nothing.
func (r *Registry) Disconnect(peer Peer) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	boards := r.memberships[peer.ID()]
	left := make([]uuid.UUID, 0, len(boards))
	for boardID := range boards {
		left = append(left, boardID)
	}
	for _, boardID := range left {
		r.leaveLocked(peer.ID(), boardID)
	}
	sort.Slice(left, func(i, j int) bool { return left[i].String() < left[j].String() })
	return left
}

func (r *Registry) leaveLocked(peerID string, boardID uuid.UUID) bool {
	room, ok := r.rooms[boardID]
	if !ok {
		return false
	}
	if _, ok := room[peerID]; !ok {
		return false
	}
	delete(room, peerID)
	if len(room) == 0 {
		delete(r.rooms, boardID)
	}

	if boards, ok := r.memberships[peerID]; ok {
		delete(boards, boardID)
		if len(boards) == 0 {
			delete(r.memberships, peerID)
		}
	}

	log.Debug().
		Str("connection_id", peerID).
		Str("board_id", boardID.String()).
		Msg("peer left room")
	return true
}

// IsMember reports whether peer has joined the board room.
func (r *Registry) IsMember(peer Peer, boardID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[boardID][peer.ID()]
	return ok
}

// Members lists the distinct identities present in a room, sorted by user id.
// A user connected twice appears once.
func (r *Registry) Members(boardID uuid.UUID) []models.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]models.Identity)
	for _, peer := range r.rooms[boardID] {
		id := peer.Identity()
		seen[id.UserID] = id
	}
	members := make([]models.Identity, 0, len(seen))
	for _, id := range seen {
		members = append(members, id)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
	return members
}

// CloseRoom removes every peer from the board room and returns how many were
// removed. Peers are not notified.
func (r *Registry) CloseRoom(boardID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[boardID]
	peerIDs := make([]string, 0, len(room))
	for id := range room {
		peerIDs = append(peerIDs, id)
	}
	for _, id := range peerIDs {
		r.leaveLocked(id, boardID)
	}
	return len(peerIDs)
}

// Deliver sends d to the peers in the room at the moment of the call and
// returns how many accepted it. Peer.Send never blocks, so callers deliver
// inline and a peer joining afterwards does not see d.
func (r *Registry) Deliver(d Delivery) int {
	r.mu.RLock()
	room := r.rooms[d.BoardID]
	targets := make([]Peer, 0, len(room))
	for id, peer := range room {
		if id == d.ExcludePeerID {
			continue
		}
		targets = append(targets, peer)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, peer := range targets {
		if peer.Send(d.Payload) {
			delivered++
			continue
		}
		log.Warn().
			Str("connection_id", peer.ID()).
			Str("user_id", peer.Identity().UserID).
			Str("board_id", d.BoardID.String()).
			Msg("peer not accepting messages, dropped delivery")
	}
	return delivered
}

// SendTo delivers payload to a single peer regardless of room membership.
func (r *Registry) SendTo(peer Peer, payload []byte) bool {
	return peer.Send(payload)
}

// Stats returns a snapshot of room sizes.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		ActiveBoards:     len(r.rooms),
		BoardConnections: make(map[string]int, len(r.rooms)),
	}
	for boardID, room := range r.rooms {
		stats.TotalConnections += len(room)
		stats.BoardConnections[boardID.String()] = len(room)
	}
	return stats
}

// Close drops all membership. Peers are not notified.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rooms = make(map[uuid.UUID]map[string]Peer)
	r.memberships = make(map[string]map[uuid.UUID]struct{})
	log.Info().Msg("session registry closed")
}
