package api

import (
	"net/http"

	"github.com/GetStream/careerchat/chat"
)

func (a *API) listSessions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.respondError(w, err)
		return
	}

	page, err := a.Chat.ListSessions(r.Context(), userID(r), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		a.respondError(w, err)
		return
	}
	a.respond(w, http.StatusOK, page)
}

func (a *API) createSession(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Title string `json:"title" validate:"max=100"`
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}

	sess, err := a.Chat.CreateSession(r.Context(), userID(r), body.Title)
	if err != nil {
		a.respondError(w, err)
		return
	}
	a.Logger.Info("Session created", "session_id", sess.ID)
	a.respond(w, http.StatusCreated, sess)
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Chat.GetSession(r.Context(), r.PathValue("sessionID"), userID(r))
	if err != nil {
		a.respondError(w, err)
		return
	}
	a.respond(w, http.StatusOK, sess)
}

func (a *API) renameSession(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Title string `json:"title" validate:"max=100"`
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}

	sess, err := a.Chat.RenameSession(r.Context(), r.PathValue("sessionID"), userID(r), body.Title)
	if err != nil {
		a.respondError(w, err)
		return
	}
	a.respond(w, http.StatusOK, sess)
}

func (a *API) deleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	if err := a.Chat.DeleteSession(r.Context(), sessionID, userID(r)); err != nil {
		a.respondError(w, err)
		return
	}
	a.Logger.Info("Session deleted", "session_id", sessionID)
	a.respondNoContent(w)
}

func (a *API) getContext(w http.ResponseWriter, r *http.Request) {
	size, err := queryInt(r, "size")
	if err != nil {
		a.respondError(w, err)
		return
	}

	msgs, err := a.Chat.Context(r.Context(), r.PathValue("sessionID"), userID(r), size)
	if err != nil {
		a.respondError(w, err)
		return
	}
	a.respond(w, http.StatusOK, ItemsResponse[chat.Message]{Items: msgs})
}

func (a *API) markSessionRead(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Updated int `json:"updated"`
	}

	n, err := a.Chat.MarkSessionRead(r.Context(), r.PathValue("sessionID"), userID(r))
	if err != nil {
		a.respondError(w, err)
		return
	}
	a.respond(w, http.StatusOK, response{Updated: n})
}
