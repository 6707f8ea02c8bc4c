/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket-only ops.
const (
	// OpWatch subscribes the connection to every change to the
	// session, including changes made through other transports.
	OpWatch = "watch"

	// OpUpdate is the op of a message sent for a watched session.
	OpUpdate = "update"
)

// websocketHandler reads Ops, one per message, and writes each Op
// back with its results.
func (s *Service) websocketHandler(ctx context.Context) http.HandlerFunc {
	var upgrader = websocket.Upgrader{} // use default options

	return func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log().Warn("websocket upgrade", zap.Error(err))
			return
		}
		defer c.Close()

		var (
			wmu    sync.Mutex
			unsubs []func()
			peer   = c.RemoteAddr().String()
			logger = s.log().With(zap.String("peer", peer))
		)
		defer func() {
			for _, unsub := range unsubs {
				unsub()
			}
		}()

		write := func(x interface{}) {
			js, err := json.Marshal(x)
			if err != nil {
				logger.Warn("websocket marshal", zap.Error(err))
				return
			}
			wmu.Lock()
			defer wmu.Unlock()
			if err = c.WriteMessage(websocket.TextMessage, js); err != nil {
				logger.Debug("websocket write", zap.Error(err))
			}
		}

		logger.Debug("websocket open")

		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				logger.Debug("websocket closed", zap.Error(err))
				break
			}

			var op Op
			if err := json.Unmarshal(message, &op); err != nil {
				op.Error, op.Err = erred(fmt.Errorf("can't parse: %w", err))
				write(&op)
				continue
			}

			if op.Op == OpWatch {
				if op.Snapshot, err = s.View(ctx, op.Session); err == nil {
					id := op.Id
					unsubs = append(unsubs, s.OutSubs.Add(op.Session, func(snap *Snapshot) {
						write(&Op{
							Id:       id,
							Op:       OpUpdate,
							Session:  snap.Session,
							KB:       snap.KB,
							Snapshot: snap,
						})
					}))
				}
				op.Error, op.Err = erred(err)
				write(&op)
				continue
			}

			if err = op.Do(ctx, s); err != nil {
				logger.Debug("op failed", zap.String("op", op.Op), zap.Error(err))
			}
			write(&op)
		}
	}
}
