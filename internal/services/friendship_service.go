package services

import (
	"context"

	"github.com/anonto42/rehab-social/backend/internal/apperr"
	"github.com/anonto42/rehab-social/backend/internal/models"
	"github.com/anonto42/rehab-social/backend/internal/repositories"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FriendshipService owns the friend request state machine. It is the only
// way two users become friends.
type FriendshipService struct {
	tx          repositories.Transactor
	friendships repositories.FriendshipRepository
	users       repositories.UserRepository
	log         *zap.Logger
}

// NewFriendshipService creates a new FriendshipService
func NewFriendshipService(tx repositories.Transactor, friendships repositories.FriendshipRepository, users repositories.UserRepository, log *zap.Logger) *FriendshipService {
	return &FriendshipService{
		tx:          tx,
		friendships: friendships,
		users:       users,
		log:         log,
	}
}

// SendRequest creates a pending request from -> to. If to already has a
// pending request towards from, that request is accepted instead and returned.
func (s *FriendshipService) SendRequest(ctx context.Context, from, to uint) (*Outcome[*models.FriendRequest], error) {
	if from == to {
		return nil, apperr.InvalidRequest("cannot send a friend request to yourself")
	}

	var (
		result       *models.FriendRequest
		autoAccepted bool
	)
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		repo := s.friendships.WithTx(tx)

		locked, err := repo.LockUsers(ctx, from, to)
		if err != nil {
			return err
		}
		if !containsUser(locked, to) {
			return apperr.NotFound("user %d not found", to)
		}

		friends, err := repo.AreFriends(ctx, from, to)
		if err != nil {
			return err
		}
		if friends {
			return apperr.Conflict("you are already friends with this user")
		}

		if _, err := repo.GetRequestByPair(ctx, from, to); err == nil {
			return apperr.Conflict("a friend request to this user already exists")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.Wrap(err, "load friend request")
		}

		reverse, err := repo.GetRequestByPair(ctx, to, from)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.Wrap(err, "load reverse friend request")
		}
		if reverse != nil && reverse.Status == models.RequestPending {
			if err := s.accept(ctx, repo, reverse); err != nil {
				return err
			}
			result, autoAccepted = reverse, true
			return nil
		}

		req := &models.FriendRequest{FromUserID: from, ToUserID: to, Status: models.RequestPending}
		if err := repo.CreateRequest(ctx, req); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("a friend request to this user already exists")
			}
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, s.classify(err, "send friend request")
	}

	s.decorate(ctx, result)
	if autoAccepted {
		s.log.Info("Reverse friend request auto-accepted",
			zap.Uint("request_id", result.ID), zap.Uint("from", result.FromUserID), zap.Uint("to", result.ToUserID))
		return &Outcome[*models.FriendRequest]{Result: result, Effects: acceptedEffects(result)}, nil
	}

	effects := []Effect{{Kind: EffectRequestReceived, UserID: to, Payload: result}}
	effects = append(effects, effectsFor(EffectRequestsChanged, from, to)...)
	return &Outcome[*models.FriendRequest]{Result: result, Effects: effects}, nil
}

// AcceptRequest accepts a pending request addressed to actingUserID and
// creates the symmetric friendship in the same transaction.
func (s *FriendshipService) AcceptRequest(ctx context.Context, requestID, actingUserID uint) (*Outcome[*models.FriendRequest], error) {
	var result *models.FriendRequest
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		repo := s.friendships.WithTx(tx)
		req, err := s.loadActionable(ctx, repo, requestID, actingUserID)
		if err != nil {
			return err
		}
		if err := s.accept(ctx, repo, req); err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, s.classify(err, "accept friend request")
	}

	s.decorate(ctx, result)
	return &Outcome[*models.FriendRequest]{Result: result, Effects: acceptedEffects(result)}, nil
}

// RejectRequest rejects a pending request addressed to actingUserID. The
// sender is not notified; only the rejecting user's lists are refreshed.
func (s *FriendshipService) RejectRequest(ctx context.Context, requestID, actingUserID uint) (*Outcome[*models.FriendRequest], error) {
	var result *models.FriendRequest
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		repo := s.friendships.WithTx(tx)
		req, err := s.loadActionable(ctx, repo, requestID, actingUserID)
		if err != nil {
			return err
		}
		if err := repo.TransitionRequest(ctx, req, models.RequestRejected); err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, s.classify(err, "reject friend request")
	}

	return &Outcome[*models.FriendRequest]{
		Result:  result,
		Effects: effectsFor(EffectRequestsChanged, actingUserID),
	}, nil
}

// Unfriend removes both directional friendship rows. Request history and
// messages are kept.
func (s *FriendshipService) Unfriend(ctx context.Context, userID, friendID uint) (*Outcome[struct{}], error) {
	if userID == friendID {
		return nil, apperr.InvalidRequest("cannot unfriend yourself")
	}
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		repo := s.friendships.WithTx(tx)
		if _, err := repo.LockUsers(ctx, userID, friendID); err != nil {
			return err
		}
		n, err := repo.DeleteFriendship(ctx, userID, friendID)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("you are not friends with this user")
		}
		return nil
	})
	if err != nil {
		return nil, s.classify(err, "unfriend")
	}

	effects := effectsFor(EffectFriendsChanged, userID, friendID)
	effects = append(effects, effectsFor(EffectConversationsChanged, userID, friendID)...)
	return &Outcome[struct{}]{Effects: effects}, nil
}

// ListFriends returns the user's friends with display info, newest first
func (s *FriendshipService) ListFriends(ctx context.Context, userID uint) ([]models.FriendEntry, error) {
	rows, err := s.friendships.ListFriendships(ctx, userID)
	if err != nil {
		return nil, s.classify(err, "list friends")
	}

	ids := make([]uint, 0, len(rows))
	for _, f := range rows {
		ids = append(ids, f.FriendID)
	}
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, s.classify(err, "list friends")
	}

	entries := make([]models.FriendEntry, 0, len(rows))
	for _, f := range rows {
		entries = append(entries, models.FriendEntry{
			FriendshipID: f.ID,
			Friend:       summaryFor(f.FriendID, users),
			CreatedAt:    f.CreatedAt,
		})
	}
	return entries, nil
}

// ListPendingIncoming returns pending requests addressed to userID, newest first
func (s *FriendshipService) ListPendingIncoming(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	incoming, err := s.friendships.ListIncomingPending(ctx, userID)
	if err != nil {
		return nil, s.classify(err, "list pending requests")
	}
	s.decorate(ctx, toPointers(incoming)...)
	return incoming, nil
}

// ListAll partitions the user's pending requests into incoming and outgoing
func (s *FriendshipService) ListAll(ctx context.Context, userID uint) (*models.RequestLists, error) {
	incoming, err := s.friendships.ListIncomingPending(ctx, userID)
	if err != nil {
		return nil, s.classify(err, "list requests")
	}
	outgoing, err := s.friendships.ListOutgoingPending(ctx, userID)
	if err != nil {
		return nil, s.classify(err, "list requests")
	}
	s.decorate(ctx, append(toPointers(incoming), toPointers(outgoing)...)...)
	return &models.RequestLists{Incoming: incoming, Outgoing: outgoing}, nil
}

// GetStatus resolves the relationship from -> to, checking friendship first,
// then a pending request each way.
func (s *FriendshipService) GetStatus(ctx context.Context, from, to uint) (*models.FriendStatus, error) {
	friends, err := s.friendships.AreFriends(ctx, from, to)
	if err != nil {
		return nil, s.classify(err, "check friend status")
	}
	if friends {
		return &models.FriendStatus{Status: models.StatusFriends}, nil
	}

	for _, dir := range []struct {
		from, to uint
		status   models.FriendStatusKind
	}{
		{from, to, models.StatusRequestSent},
		{to, from, models.StatusRequestReceived},
	} {
		req, err := s.friendships.GetRequestByPair(ctx, dir.from, dir.to)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, s.classify(err, "check friend status")
		}
		if req.Status == models.RequestPending {
			id := req.ID
			return &models.FriendStatus{Status: dir.status, RequestID: &id}, nil
		}
	}
	return &models.FriendStatus{Status: models.StatusNotFriends}, nil
}

// AreFriends reports whether a and b hold a friendship. It always reads the store.
func (s *FriendshipService) AreFriends(ctx context.Context, a, b uint) (bool, error) {
	ok, err := s.friendships.AreFriends(ctx, a, b)
	if err != nil {
		return false, s.classify(err, "check friendship")
	}
	return ok, nil
}

// WhileFriends runs fn in a transaction that holds both users' row locks,
// and only if a and b are friends at that point. A concurrent Unfriend
// cannot commit until fn's writes do. It reports whether fn ran.
func (s *FriendshipService) WhileFriends(ctx context.Context, a, b uint, fn func(tx *gorm.DB) error) (bool, error) {
	var friends bool
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		repo := s.friendships.WithTx(tx)
		if _, err := repo.LockUsers(ctx, a, b); err != nil {
			return err
		}
		ok, err := repo.AreFriends(ctx, a, b)
		if err != nil || !ok {
			return err
		}
		friends = true
		return fn(tx)
	})
	if err != nil {
		return false, s.classify(err, "check friendship")
	}
	return friends, nil
}

// RequestStatus returns the most recent request between the pair in either direction
func (s *FriendshipService) RequestStatus(ctx context.Context, userA, userB uint) (*models.FriendRequest, error) {
	req, err := s.friendships.GetLatestRequestBetween(ctx, userA, userB)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("no friend request between these users")
		}
		return nil, s.classify(err, "load friend request")
	}
	s.decorate(ctx, req)
	return req, nil
}

func (s *FriendshipService) loadActionable(ctx context.Context, repo repositories.FriendshipRepository, requestID, actingUserID uint) (*models.FriendRequest, error) {
	req, err := repo.GetRequestByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("friend request %d not found", requestID)
		}
		return nil, errors.Wrap(err, "load friend request")
	}
	if req.ToUserID != actingUserID {
		return nil, apperr.Forbidden("you are not authorized to respond to this friend request")
	}
	if req.IsTerminal() {
		return nil, apperr.Conflict("friend request is already %s", req.Status)
	}
	return req, nil
}

func (s *FriendshipService) accept(ctx context.Context, repo repositories.FriendshipRepository, req *models.FriendRequest) error {
	if err := repo.TransitionRequest(ctx, req, models.RequestAccepted); err != nil {
		return err
	}
	if err := repo.CreateFriendship(ctx, req.FromUserID, req.ToUserID); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("you are already friends with this user")
		}
		return err
	}
	return nil
}

// classify turns repository failures into taxonomy errors.
func (s *FriendshipService) classify(err error, op string) error {
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, repositories.ErrStaleState):
		return apperr.Conflict("friend request is no longer pending")
	default:
		s.log.Error("Friendship operation failed", zap.String("op", op), zap.Error(err))
		return apperr.Internal(err, "failed to "+op)
	}
}

func (s *FriendshipService) decorate(ctx context.Context, reqs ...*models.FriendRequest) {
	if len(reqs) == 0 {
		return
	}
	seen := make(map[uint]struct{})
	ids := make([]uint, 0, len(reqs)*2)
	for _, r := range reqs {
		for _, id := range []uint{r.FromUserID, r.ToUserID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		s.log.Warn("Could not decorate friend requests", zap.Error(err))
		return
	}
	for _, r := range reqs {
		decorateRequest(r, users)
	}
}

func acceptedEffects(req *models.FriendRequest) []Effect {
	effects := []Effect{
		{Kind: EffectRequestAccepted, UserID: req.FromUserID, Payload: req},
		{Kind: EffectRequestAccepted, UserID: req.ToUserID, Payload: req},
	}
	for _, kind := range []EffectKind{EffectRequestsChanged, EffectFriendsChanged, EffectConversationsChanged} {
		effects = append(effects, effectsFor(kind, req.FromUserID, req.ToUserID)...)
	}
	return effects
}

func containsUser(users []models.User, id uint) bool {
	for _, u := range users {
		if u.ID == id {
			return true
		}
	}
	return false
}

func toPointers(reqs []models.FriendRequest) []*models.FriendRequest {
	out := make([]*models.FriendRequest, len(reqs))
	for i := range reqs {
		out[i] = &reqs[i]
	}
	return out
}
