package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"keeper/internal/apperrors"
	"keeper/internal/models"
	"keeper/internal/repositories"
)

type pair [2]int64

// memDB is an in-memory store. WithinTx serialises units of work and restores state on error.
type memDB struct {
	mu           sync.Mutex
	nextID       int64
	users        map[int64]models.User
	rooms        map[int64]models.ChatRoom
	participants map[int64][]int64
	dms          map[pair]int64
	messages     map[int64]models.Message
	reactions    map[int64]models.Reaction
	receipts     map[pair]models.ReadReceipt
	friendships  map[int64]models.Friendship
	hidden       map[pair]bool
}

func newMemDB() *memDB {
	return &memDB{
		users:        map[int64]models.User{},
		rooms:        map[int64]models.ChatRoom{},
		participants: map[int64][]int64{},
		dms:          map[pair]int64{},
		messages:     map[int64]models.Message{},
		reactions:    map[int64]models.Reaction{},
		receipts:     map[pair]models.ReadReceipt{},
		friendships:  map[int64]models.Friendship{},
		hidden:       map[pair]bool{},
	}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (db *memDB) snapshot() *memDB {
	s := &memDB{
		nextID:       db.nextID,
		users:        copyMap(db.users),
		rooms:        copyMap(db.rooms),
		participants: make(map[int64][]int64, len(db.participants)),
		dms:          copyMap(db.dms),
		messages:     copyMap(db.messages),
		reactions:    copyMap(db.reactions),
		receipts:     copyMap(db.receipts),
		friendships:  copyMap(db.friendships),
		hidden:       copyMap(db.hidden),
	}
	for k, v := range db.participants {
		s.participants[k] = append([]int64(nil), v...)
	}
	return s
}

func (db *memDB) restore(s *memDB) {
	db.nextID = s.nextID
	db.users, db.rooms, db.participants, db.dms = s.users, s.rooms, s.participants, s.dms
	db.messages, db.reactions, db.receipts = s.messages, s.reactions, s.receipts
	db.friendships, db.hidden = s.friendships, s.hidden
}

type memStore struct{ db *memDB }

func (s memStore) Users() repositories.UserRepository             { return memUsers{s.db} }
func (s memStore) Rooms() repositories.RoomRepository             { return memRooms{s.db} }
func (s memStore) Messages() repositories.MessageRepository       { return memMessages{s.db} }
func (s memStore) Reactions() repositories.ReactionRepository     { return memReactions{s.db} }
func (s memStore) Receipts() repositories.ReceiptRepository       { return memReceipts{s.db} }
func (s memStore) Friendships() repositories.FriendshipRepository { return memFriendships{s.db} }
func (s memStore) HiddenRooms() repositories.HiddenRoomRepository { return memHidden{s.db} }

func (s memStore) WithinTx(ctx context.Context, fn func(tx repositories.Tx) error) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	snap := s.db.snapshot()
	if err := fn(s); err != nil {
		s.db.restore(snap)
		return err
	}
	return nil
}

var _ repositories.Store = memStore{}

type memUsers struct{ db *memDB }

func (r memUsers) GetByID(_ context.Context, id int64) (models.User, error) {
	u, ok := r.db.users[id]
	if !ok {
		return models.User{}, apperrors.NotFound("user not found")
	}
	return u, nil
}

func (r memUsers) GetByUsername(_ context.Context, username string) (models.User, error) {
	for _, u := range r.db.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, apperrors.NotFound("user not found")
}

func (r memUsers) GetByPublicID(_ context.Context, publicID string) (models.User, error) {
	for _, u := range r.db.users {
		if u.PublicID == publicID {
			return u, nil
		}
	}
	return models.User{}, apperrors.NotFound("user not found")
}

func (r memUsers) ListByIDs(_ context.Context, ids []int64) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := r.db.users[id]; ok {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memUsers) UpdatePushToken(ctx context.Context, username, token string) error {
	u, err := r.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	u.PushToken = token
	r.db.users[u.ID] = u
	return nil
}

type memRooms struct{ db *memDB }

func (r memRooms) Get(_ context.Context, id int64) (models.ChatRoom, error) {
	room, ok := r.db.rooms[id]
	if !ok {
		return models.ChatRoom{}, apperrors.NotFound("room not found")
	}
	return room, nil
}

func (r memRooms) GetByInviteCode(_ context.Context, code string) (models.ChatRoom, error) {
	for _, room := range r.db.rooms {
		if room.InviteCode == code {
			return room, nil
		}
	}
	return models.ChatRoom{}, apperrors.NotFound("room not found")
}

func (r memRooms) ParticipantIDs(_ context.Context, roomID int64) ([]int64, error) {
	ids := append([]int64(nil), r.db.participants[roomID]...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r memRooms) IsParticipant(_ context.Context, roomID, userID int64) (bool, error) {
	return containsID(r.db.participants[roomID], userID), nil
}

func (r memRooms) AddParticipant(_ context.Context, roomID, userID int64) error {
	if !containsID(r.db.participants[roomID], userID) {
		r.db.participants[roomID] = append(r.db.participants[roomID], userID)
	}
	return nil
}

func (r memRooms) CreateGroup(ctx context.Context, name, inviteCode string, ownerID int64) (models.ChatRoom, error) {
	owner := ownerID
	room := models.ChatRoom{ID: r.db.id(), Name: name, InviteCode: inviteCode, OwnerID: &owner, CreatedAt: time.Now()}
	r.db.rooms[room.ID] = room
	return room, r.AddParticipant(ctx, room.ID, ownerID)
}

func (r memRooms) FindOrCreateDM(ctx context.Context, userA, userB int64, name, inviteCode string) (models.ChatRoom, bool, error) {
	low, high := models.DMKey(userA, userB)
	if id, ok := r.db.dms[pair{low, high}]; ok {
		return r.db.rooms[id], false, nil
	}
	room := models.ChatRoom{ID: r.db.id(), Name: name, InviteCode: inviteCode, IsPrivate: true, CreatedAt: time.Now()}
	r.db.rooms[room.ID] = room
	r.db.dms[pair{low, high}] = room.ID
	r.db.participants[room.ID] = []int64{low, high}
	return room, true, nil
}

func (r memRooms) ListVisibleDMs(_ context.Context, userID int64, limit, offset int) ([]models.ChatRoom, error) {
	return r.list(userID, true, limit, offset), nil
}

func (r memRooms) ListGroups(_ context.Context, userID int64, limit, offset int) ([]models.ChatRoom, error) {
	return r.list(userID, false, limit, offset), nil
}

func (r memRooms) list(userID int64, private bool, limit, offset int) []models.ChatRoom {
	var out []models.ChatRoom
	for id, room := range r.db.rooms {
		if room.IsPrivate != private || !containsID(r.db.participants[id], userID) || r.db.hidden[pair{userID, id}] {
			continue
		}
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return window(out, limit, offset)
}

func (r memRooms) Rename(_ context.Context, roomID int64, name string) (models.ChatRoom, error) {
	room, ok := r.db.rooms[roomID]
	if !ok {
		return models.ChatRoom{}, apperrors.NotFound("room not found")
	}
	room.Name = name
	r.db.rooms[roomID] = room
	return room, nil
}

func (r memRooms) Delete(_ context.Context, roomID int64) error {
	if _, ok := r.db.rooms[roomID]; !ok {
		return apperrors.NotFound("room not found")
	}
	delete(r.db.rooms, roomID)
	delete(r.db.participants, roomID)
	for id, msg := range r.db.messages {
		if msg.RoomID != roomID {
			continue
		}
		delete(r.db.messages, id)
		for rid, reaction := range r.db.reactions {
			if reaction.MessageID == id {
				delete(r.db.reactions, rid)
			}
		}
		for key, receipt := range r.db.receipts {
			if receipt.MessageID == id {
				delete(r.db.receipts, key)
			}
		}
	}
	for key := range r.db.hidden {
		if key[1] == roomID {
			delete(r.db.hidden, key)
		}
	}
	return nil
}

func (r memRooms) RemoveParticipant(_ context.Context, roomID, userID int64) (bool, error) {
	ids := r.db.participants[roomID]
	for i, id := range ids {
		if id == userID {
			r.db.participants[roomID] = append(ids[:i:i], ids[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

type memMessages struct{ db *memDB }

func (r memMessages) Create(_ context.Context, roomID, senderID int64, content string, replyToID *int64) (models.Message, error) {
	msg := models.Message{ID: r.db.id(), RoomID: roomID, SenderID: senderID, Content: content, ReplyToID: replyToID, CreatedAt: time.Now()}
	r.db.messages[msg.ID] = msg
	return msg, nil
}

func (r memMessages) Get(_ context.Context, id int64) (models.Message, error) {
	msg, ok := r.db.messages[id]
	if !ok {
		return models.Message{}, apperrors.NotFound("message not found")
	}
	return msg, nil
}

func (r memMessages) GetForUpdate(ctx context.Context, id int64) (models.Message, error) {
	return r.Get(ctx, id)
}

func (r memMessages) ListByIDs(_ context.Context, ids []int64) ([]models.Message, error) {
	var out []models.Message
	for _, id := range ids {
		if m, ok := r.db.messages[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r memMessages) ListByRoom(_ context.Context, roomID int64, limit, offset int) ([]models.Message, error) {
	return window(r.newestFirst(func(m models.Message) bool { return m.RoomID == roomID }), limit, offset), nil
}

func (r memMessages) ListPinned(_ context.Context, roomID int64) ([]models.Message, error) {
	return r.newestFirst(func(m models.Message) bool { return m.RoomID == roomID && m.Pinned }), nil
}

func (r memMessages) newestFirst(keep func(models.Message) bool) []models.Message {
	var out []models.Message
	for _, m := range r.db.messages {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r memMessages) IDsUpTo(_ context.Context, roomID, lastID int64) ([]int64, error) {
	var ids []int64
	for _, m := range r.db.messages {
		if m.RoomID == roomID && m.ID <= lastID {
			ids = append(ids, m.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r memMessages) update(id int64, fn func(*models.Message)) error {
	msg, ok := r.db.messages[id]
	if !ok {
		return apperrors.NotFound("message not found")
	}
	fn(&msg)
	r.db.messages[id] = msg
	return nil
}

func (r memMessages) UpdateContent(_ context.Context, id int64, content string) error {
	return r.update(id, func(m *models.Message) { m.Content, m.Edited = content, true })
}

func (r memMessages) SetPinned(_ context.Context, id int64, pinned bool) error {
	return r.update(id, func(m *models.Message) { m.Pinned = pinned })
}

func (r memMessages) UpdateLinkPreview(_ context.Context, id int64, p models.LinkPreview) error {
	return r.update(id, func(m *models.Message) {
		m.LinkPreviewURL, m.LinkPreviewTitle = &p.URL, &p.Title
		m.LinkPreviewDescription, m.LinkPreviewImage = &p.Description, &p.Image
	})
}

func (r memMessages) Delete(_ context.Context, id int64) error {
	if _, ok := r.db.messages[id]; !ok {
		return apperrors.NotFound("message not found")
	}
	delete(r.db.messages, id)
	for rid, reaction := range r.db.reactions {
		if reaction.MessageID == id {
			delete(r.db.reactions, rid)
		}
	}
	for key := range r.db.receipts {
		if key[1] == id {
			delete(r.db.receipts, key)
		}
	}
	for mid, m := range r.db.messages {
		if m.ReplyToID != nil && *m.ReplyToID == id {
			m.ReplyToID = nil
			r.db.messages[mid] = m
		}
	}
	return nil
}

type memReactions struct{ db *memDB }

func (r memReactions) Find(_ context.Context, userID, messageID int64, emoji string) (models.Reaction, error) {
	for _, reaction := range r.db.reactions {
		if reaction.UserID == userID && reaction.MessageID == messageID && reaction.Emoji == emoji {
			return reaction, nil
		}
	}
	return models.Reaction{}, apperrors.NotFound("reaction not found")
}

func (r memReactions) Create(ctx context.Context, userID, messageID int64, emoji string) error {
	if _, err := r.Find(ctx, userID, messageID, emoji); err == nil {
		return nil
	}
	id := r.db.id()
	r.db.reactions[id] = models.Reaction{ID: id, MessageID: messageID, UserID: userID, Emoji: emoji, CreatedAt: time.Now()}
	return nil
}

func (r memReactions) Delete(_ context.Context, id int64) error {
	delete(r.db.reactions, id)
	return nil
}

func (r memReactions) ListByMessages(_ context.Context, ids []int64) ([]models.Reaction, error) {
	var out []models.Reaction
	for _, reaction := range r.db.reactions {
		if containsID(ids, reaction.MessageID) {
			out = append(out, reaction)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memReceipts struct{ db *memDB }

func (r memReceipts) SeenMessageIDs(_ context.Context, roomID, userID int64) ([]int64, error) {
	var ids []int64
	for key := range r.db.receipts {
		if key[0] == userID && r.db.messages[key[1]].RoomID == roomID {
			ids = append(ids, key[1])
		}
	}
	return ids, nil
}

func (r memReceipts) InsertBatch(_ context.Context, userID int64, ids []int64) (int64, error) {
	var n int64
	for _, id := range ids {
		key := pair{userID, id}
		if _, ok := r.db.receipts[key]; ok {
			continue
		}
		r.db.receipts[key] = models.ReadReceipt{ID: r.db.id(), MessageID: id, UserID: userID, ReadAt: time.Now()}
		n++
	}
	return n, nil
}

func (r memReceipts) ListByMessages(_ context.Context, ids []int64) ([]models.ReadReceipt, error) {
	var out []models.ReadReceipt
	for _, receipt := range r.db.receipts {
		if containsID(ids, receipt.MessageID) {
			out = append(out, receipt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memFriendships struct{ db *memDB }

func (r memFriendships) FindBetween(_ context.Context, a, b int64) (models.Friendship, error) {
	for _, f := range r.db.friendships {
		if (f.RequesterID == a && f.AddresseeID == b) || (f.RequesterID == b && f.AddresseeID == a) {
			return f, nil
		}
	}
	return models.Friendship{}, apperrors.NotFound("friendship not found")
}

func (r memFriendships) FindDirected(_ context.Context, requesterID, addresseeID int64, status models.FriendshipStatus) (models.Friendship, error) {
	for _, f := range r.db.friendships {
		if f.RequesterID == requesterID && f.AddresseeID == addresseeID && f.Status == status {
			return f, nil
		}
	}
	return models.Friendship{}, apperrors.NotFound("friendship not found")
}

func (r memFriendships) Create(ctx context.Context, requesterID, addresseeID int64) (models.Friendship, error) {
	if _, err := r.FindBetween(ctx, requesterID, addresseeID); err == nil {
		return models.Friendship{}, apperrors.Conflict("friendship already exists")
	}
	f := models.Friendship{ID: r.db.id(), RequesterID: requesterID, AddresseeID: addresseeID, Status: models.FriendshipPending, CreatedAt: time.Now()}
	r.db.friendships[f.ID] = f
	return f, nil
}

func (r memFriendships) UpdateStatus(_ context.Context, id int64, status models.FriendshipStatus) error {
	f, ok := r.db.friendships[id]
	if !ok {
		return apperrors.NotFound("friendship not found")
	}
	f.Status = status
	r.db.friendships[id] = f
	return nil
}

func (r memFriendships) Delete(_ context.Context, id int64) error {
	if _, ok := r.db.friendships[id]; !ok {
		return apperrors.NotFound("friendship not found")
	}
	delete(r.db.friendships, id)
	return nil
}

func (r memFriendships) ListByStatus(_ context.Context, userID int64, status models.FriendshipStatus) ([]models.Friendship, error) {
	var out []models.Friendship
	for _, f := range r.db.friendships {
		if f.Status == status && (f.RequesterID == userID || f.AddresseeID == userID) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memHidden struct{ db *memDB }

func (r memHidden) Exists(_ context.Context, userID, roomID int64) (bool, error) {
	return r.db.hidden[pair{userID, roomID}], nil
}

func (r memHidden) Create(_ context.Context, userID, roomID int64) error {
	r.db.hidden[pair{userID, roomID}] = true
	return nil
}

func (r memHidden) Delete(_ context.Context, userID, roomID int64) (bool, error) {
	key := pair{userID, roomID}
	if !r.db.hidden[key] {
		return false, nil
	}
	delete(r.db.hidden, key)
	return true, nil
}

func (r memHidden) HiddenUserIDs(_ context.Context, roomID int64) ([]int64, error) {
	var ids []int64
	for key := range r.db.hidden {
		if key[1] == roomID {
			ids = append(ids, key[0])
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
