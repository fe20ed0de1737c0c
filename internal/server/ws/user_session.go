package ws

import "context"

// userSession relays operator frames to the kiosk of one gym.
type userSession struct {
	h     *Handler
	conn  *Conn
	gymID int64
}

func (s *userSession) handle(_ context.Context, in Inbound) bool {
	gym := s.h.reg.Gym(s.gymID)
	if gym == nil {
		s.h.sendError(s.conn, typeError, msgGymConnMissing)
		return false
	}

	var err error
	if m, ok := in.(UserMsg); ok && m.HasID {
		err = s.h.reg.Send(gym, userRelayFrame{Type: typeUser, ID: m.ID})
	} else {
		err = s.h.reg.SendRaw(gym, in.Raw())
	}
	if err != nil {
		s.h.sendError(s.conn, typeError, msgGymConnMissing)
	}
	return false
}
