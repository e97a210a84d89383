package api

import (
	"net/http"

	"github.com/GetStream/careerchat/apperror"
	"github.com/GetStream/careerchat/chat"
)

func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.respondError(w, err)
		return
	}

	page, err := a.Chat.ListMessages(r.Context(), r.PathValue("sessionID"), userID(r), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		a.respondError(w, err)
		return
	}
	a.respond(w, http.StatusOK, page)
}

func (a *API) sendMessage(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Content string `json:"content" validate:"notblank,max=4000"`
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}

	sessionID := r.PathValue("sessionID")
	user, assistant, err := a.Chat.Send(r.Context(), sessionID, userID(r), body.Content)
	if err != nil {
		if user.ID != "" {
			a.Logger.Error("Could not answer message", "session_id", sessionID, "message_id", user.ID, "error", err.Error())
		}
		a.respondError(w, err)
		return
	}
	a.respond(w, http.StatusCreated, SendResponse{UserMessage: user, AssistantMessage: assistant})
}

func (a *API) countMessages(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Count int `json:"count"`
	}

	n, err := a.Chat.CountMessages(r.Context(), r.PathValue("sessionID"), userID(r))
	if err != nil {
		a.respondError(w, err)
		return
	}
	a.respond(w, http.StatusOK, response{Count: n})
}

func (a *API) searchMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.respondError(w, err)
		return
	}

	msgs, err := a.Chat.SearchMessages(r.Context(), r.PathValue("sessionID"), userID(r), r.URL.Query().Get("q"), limit)
	if err != nil {
		a.respondError(w, err)
		return
	}
	a.respond(w, http.StatusOK, ItemsResponse[chat.Message]{Items: msgs})
}

func (a *API) getMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := a.Chat.GetMessage(r.Context(), r.PathValue("messageID"), r.PathValue("sessionID"), userID(r))
	if err != nil {
		a.respondError(w, err)
		return
	}
	a.respond(w, http.StatusOK, msg)
}

func (a *API) editMessage(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Content string `json:"content" validate:"notblank,max=4000"`
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}

	msg, err := a.Chat.EditMessage(r.Context(), r.PathValue("messageID"), r.PathValue("sessionID"), userID(r), body.Content)
	if err != nil {
		a.respondError(w, err)
		return
	}
	a.respond(w, http.StatusOK, msg)
}

func (a *API) deleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID := r.PathValue("messageID")
	if err := a.Chat.DeleteMessage(r.Context(), messageID, r.PathValue("sessionID"), userID(r)); err != nil {
		a.respondError(w, err)
		return
	}
	a.Logger.Info("Message deleted", "message_id", messageID)
	a.respondNoContent(w)
}

func (a *API) markRead(w http.ResponseWriter, r *http.Request) {
	msg, err := a.Chat.MarkRead(r.Context(), r.PathValue("messageID"), r.PathValue("sessionID"), userID(r))
	if err != nil {
		a.respondError(w, err)
		return
	}
	a.respond(w, http.StatusOK, msg)
}

func (a *API) regenerate(w http.ResponseWriter, r *http.Request) {
	msg, err := a.Chat.Regenerate(r.Context(), r.PathValue("messageID"), r.PathValue("sessionID"), userID(r))
	if err != nil {
		a.respondError(w, err)
		return
	}
	a.respond(w, http.StatusOK, msg)
}

func (a *API) messageHistory(w http.ResponseWriter, r *http.Request) {
	h, err := a.Chat.MessageHistory(r.Context(), r.PathValue("messageID"), r.PathValue("sessionID"), userID(r))
	if err != nil {
		a.respondError(w, err)
		return
	}
	a.respond(w, http.StatusOK, ItemsResponse[chat.EditHistory]{Items: h})
}

// message resolves the messageID path value within the sessionID path
// value, for routes whose service call is keyed by message only.
func (a *API) message(w http.ResponseWriter, r *http.Request) (chat.Message, bool) {
	msg, err := a.Chat.GetMessage(r.Context(), r.PathValue("messageID"), r.PathValue("sessionID"), userID(r))
	if err != nil {
		a.respondError(w, err)
		return chat.Message{}, false
	}
	return msg, true
}

func (a *API) toggleBookmark(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Bookmarked bool `json:"bookmarked"`
	}

	msg, ok := a.message(w, r)
	if !ok {
		return
	}
	on, err := a.Chat.ToggleBookmark(r.Context(), msg.ID, userID(r))
	if err != nil {
		a.respondError(w, err)
		return
	}
	a.respond(w, http.StatusOK, response{Bookmarked: on})
}

func (a *API) addReaction(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Emoji string `json:"emoji" validate:"notblank,max=16"`
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}
	msg, ok := a.message(w, r)
	if !ok {
		return
	}

	reaction, err := a.Chat.AddReaction(r.Context(), msg.ID, userID(r), body.Emoji)
	if err != nil {
		a.respondError(w, err)
		return
	}
	a.respond(w, http.StatusCreated, reaction)
}

func (a *API) removeReaction(w http.ResponseWriter, r *http.Request) {
	emoji := r.PathValue("emoji")
	if errs := a.Val.Validate(emoji, "notblank,max=16"); len(errs) > 0 {
		a.respondError(w, apperror.Validation("emoji", errs[0].Reason))
		return
	}
	msg, ok := a.message(w, r)
	if !ok {
		return
	}

	if err := a.Chat.RemoveReaction(r.Context(), msg.ID, userID(r), emoji); err != nil {
		a.respondError(w, err)
		return
	}
	a.respondNoContent(w)
}
