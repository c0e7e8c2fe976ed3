package controller

import (
	"github.com/sharetube/watchparty/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.wsRequestIdWSMw(), c.loggerWSMw())

	wsrouter.Handle(mux, "ALIVE", c.handleAlive)

	return mux
}
