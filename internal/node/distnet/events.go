package distnet

import (
	"context"
	"log/slog"

	"github.com/hashicorp/memberlist"
)

// eventDelegate implements memberlist.EventDelegate. Besides logging
// membership changes, it feeds the controller's teardown wait: the
// leave event for the local node is the down-notification teardown
// blocks on.
type eventDelegate struct {
	controller *Controller
}

// NotifyJoin is called when a node joins.
func (e *eventDelegate) NotifyJoin(node *memberlist.Node) {
	e.controller.logger.Info("node joined",
		"node", node.Name,
		"addr", node.Addr.String())
}

// NotifyLeave is called when a node leaves or is marked dead.
func (e *eventDelegate) NotifyLeave(node *memberlist.Node) {
	e.controller.logger.Info("node left",
		"node", node.Name,
		"addr", node.Addr.String())
	e.controller.notifyDown(node.Name)
}

// NotifyUpdate is called when a node's metadata is updated.
func (e *eventDelegate) NotifyUpdate(node *memberlist.Node) {
	e.controller.logger.Debug("node updated",
		"node", node.Name,
		"addr", node.Addr.String())
}

// slogWriter adapts slog.Logger to io.Writer for the layer's internal
// logging, at the configured verbosity.
type slogWriter struct {
	logger *slog.Logger
	level  slog.Level
}

// Write implements io.Writer.
func (w *slogWriter) Write(p []byte) (n int, err error) {
	w.logger.Log(context.Background(), w.level, string(p))
	return len(p), nil
}
