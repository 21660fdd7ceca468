package handlers

import (
	ws "github.com/fasthttp/websocket"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sagarjadhav/tablemate/internal/middleware"
	"github.com/sagarjadhav/tablemate/internal/websocket"
	"github.com/valyala/fasthttp"
	"github.com/zerodha/fastglue"
)

var wsUpgrader = ws.FastHTTPUpgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(ctx *fasthttp.RequestCtx) bool {
		return true
	},
}

// WebSocketHandler upgrades a dashboard connection. Browsers cannot set
// headers on WebSocket requests, so the JWT arrives as a query parameter.
func (a *App) WebSocketHandler(r *fastglue.Request) error {
	tokenString := string(r.RequestCtx.QueryArgs().Peek("token"))
	if tokenString == "" {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Missing token", nil, "")
	}

	token, err := jwt.ParseWithClaims(tokenString, &middleware.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(a.Config.JWT.Secret), nil
	})
	if err != nil || !token.Valid {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Invalid or expired token", nil, "")
	}

	claims, ok := token.Claims.(*middleware.JWTClaims)
	if !ok {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Invalid token claims", nil, "")
	}

	err = wsUpgrader.Upgrade(r.RequestCtx, func(conn *ws.Conn) {
		client := websocket.NewClient(a.WSHub, conn, claims.UserID, claims.OrganizationID)
		a.WSHub.Register(client)

		go client.WritePump()
		client.ReadPump()
	})
	if err != nil {
		a.Log.Error("WebSocket upgrade failed", "error", err)
		return nil
	}

	return nil
}
