package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/itiky/synclist/model"
	"github.com/itiky/synclist/storage"
)

type ctxKey int

const userIdCtxKey ctxKey = iota

// authenticated verifies the bearer token: missing, invalid and expired tokens get 403.
func (s *Service) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userId, err := s.tokens.VerifyRequest(r)
		if err != nil {
			writeMessage(w, http.StatusForbidden, "Invalid or expired token")
			return
		}
		if _, err := s.store.User(userId); err != nil {
			writeMessage(w, http.StatusForbidden, "Invalid or expired token")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userIdCtxKey, userId)))
	}
}

func (s *Service) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "SyncList API is running"})
}

func (s *Service) register(w http.ResponseWriter, r *http.Request) {
	req := model.RegisterRequest{}
	if !readJSON(w, r, &req) {
		return
	}

	if _, err := s.store.CreateUser(req.Username, req.Email, req.Password, time.Now().UTC()); err != nil {
		writeStoreError(w, err)
		return
	}
	s.markDirty()

	writeJSON(w, http.StatusCreated, model.MessageResponse{Message: "User registered successfully"})
}

func (s *Service) login(w http.ResponseWriter, r *http.Request) {
	req := model.LoginRequest{}
	if !readJSON(w, r, &req) {
		return
	}

	user, err := s.store.Authenticate(req.Email, req.Password)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid email or password")
		return
	}

	token, err := s.tokens.Issue(user.Id)
	if err != nil {
		log.Printf("%s: login: %v", s.String(), err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, model.LoginResponse{
		Token:      token,
		Name:       user.Username,
		ProfilePic: user.AvatarUrl,
	})
}

func (s *Service) profile(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.User(requestUserId(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.ProfileResponse{User: user.Profile()})
}

func (s *Service) getLists(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.GetListsResponse{Lists: s.store.Lists(requestUserId(r))})
}

func (s *Service) createList(w http.ResponseWriter, r *http.Request) {
	req := model.CreateListRequest{}
	if !readJSON(w, r, &req) {
		return
	}

	list, err := s.store.CreateList(requestUserId(r), req.Name, time.Now().UTC())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.markDirty()

	writeJSON(w, http.StatusCreated, list)
}

func (s *Service) deleteList(w http.ResponseWriter, r *http.Request) {
	listId := model.ListId(mux.Vars(r)["id"])

	if err := s.store.DeleteList(requestUserId(r), listId); err != nil {
		writeStoreError(w, err)
		return
	}
	s.hub.CloseRoom(listId)
	s.markDirty()

	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "List deleted"})
}

func (s *Service) joinList(w http.ResponseWriter, r *http.Request) {
	listId := model.ListId(mux.Vars(r)["id"])

	if _, err := s.store.JoinList(requestUserId(r), listId); err != nil {
		writeStoreError(w, err)
		return
	}
	s.markDirty()

	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "Successfully joined the list."})
}

func (s *Service) getListItems(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.store.Snapshot(requestUserId(r), model.ListId(mux.Vars(r)["id"]))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Service) addItem(w http.ResponseWriter, r *http.Request) {
	req := model.AddItemRequest{}
	if !readJSON(w, r, &req) {
		return
	}

	delta, err := s.store.AddItem(requestUserId(r), req.ListId, req.Name, time.Now().UTC())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.mutated(req.ListId, delta)

	writeJSON(w, http.StatusCreated, delta.Item)
}

func (s *Service) deleteItem(w http.ResponseWriter, r *http.Request) {
	listId, delta, err := s.store.DeleteItem(requestUserId(r), model.ItemId(mux.Vars(r)["id"]), time.Now().UTC())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.mutated(listId, delta)

	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "Item deleted"})
}

func (s *Service) claimItem(w http.ResponseWriter, r *http.Request) {
	listId, delta, err := s.store.ToggleClaim(requestUserId(r), model.ItemId(mux.Vars(r)["id"]), time.Now().UTC())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.mutated(listId, delta)

	writeJSON(w, http.StatusOK, delta.Item)
}

// mutated broadcasts the delta to the list room and schedules the persistence.
func (s *Service) mutated(listId model.ListId, delta model.Delta) {
	s.markDirty()

	recipients, err := s.hub.Broadcast(listId, delta)
	if err != nil {
		log.Printf("%s: list %s: broadcast %s: %v", s.String(), listId, delta.String(), err)
		return
	}
	s.monitor.DeltaBroadcasted(recipients)
}

func requestUserId(r *http.Request) model.UserId {
	userId, _ := r.Context().Value(userIdCtxKey).(model.UserId)
	return userId
}

func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("JSON response encode: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.MessageResponse{Message: msg})
}

// writeStoreError maps storage errors to statuses.
// 403 is reserved for credential failures, so permission errors are 400.
func writeStoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var sentinel error
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status, sentinel = http.StatusNotFound, storage.ErrNotFound
	case errors.Is(err, storage.ErrInvalid):
		status, sentinel = http.StatusBadRequest, storage.ErrInvalid
	case errors.Is(err, storage.ErrConflict):
		status, sentinel = http.StatusBadRequest, storage.ErrConflict
	case errors.Is(err, storage.ErrNotPermitted):
		status, sentinel = http.StatusBadRequest, storage.ErrNotPermitted
	}

	if sentinel == nil {
		log.Printf("Store: %v", err)
		writeMessage(w, status, "Server error")
		return
	}

	writeMessage(w, status, storeErrorMessage(err, sentinel))
}

// storeErrorMessage strips the sentinel prefix and capitalizes the rest.
func storeErrorMessage(err, sentinel error) string {
	msg := err.Error()
	if strings.HasPrefix(msg, sentinel.Error()+": ") {
		msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
		if sentinel == storage.ErrNotFound {
			msg += " not found"
		}
	}

	return strings.ToUpper(msg[:1]) + msg[1:]
}
