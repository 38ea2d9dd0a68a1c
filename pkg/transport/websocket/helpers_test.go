package websocket

import (
	"net/http"

	gws "github.com/gorilla/websocket"

	"github.com/HMasataka/livecount/internal/logging"
)

func nopLogger() *logging.Logger {
	return logging.Nop()
}

// httpHandler upgrades and hands the socket to fn, closing it afterwards.
func httpHandler(fn func(*gws.Conn), upgrader gws.Upgrader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		fn(c)
	})
}
