package server

import "net/http"

type sendMessageRequest struct {
	SenderID         string `json:"senderId" validate:"required"`
	ReceiverUsername string `json:"receiverUsername" validate:"required"`
	Content          string `json:"content" validate:"required"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var request sendMessageRequest
	if !s.decodeAndValidate(w, r, &request) {
		return
	}
	message, err := s.messages.Send(request.SenderID, request.ReceiverUsername, request.Content)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, message)
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := s.messages.Conversations(r.PathValue("userId"))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, conversations)
}

func (s *Server) handleMessagesBetween(w http.ResponseWriter, r *http.Request) {
	thread, err := s.messages.Between(r.PathValue("userA"), r.PathValue("userB"))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, thread)
}
