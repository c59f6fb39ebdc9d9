package simplex

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/simplextest/assert"
)

func TestReadOptions(t *testing.T) {
	type conf struct {
		Timeout int    `json:"timeout"`
		Name    string `json:"name"`
	}
	cases := map[string]struct {
		json    string
		key     string
		want    conf
		wantErr bool
	}{
		"happy path": {
			json: `{"protocol": {"timeout": 7, "name": "osp"}}`,
			key:  "protocol",
			want: conf{Timeout: 7, Name: "osp"},
		},
		"missing key is a noop": {
			json: `{"other": {"timeout": 7}}`,
			key:  "protocol",
		},
		"wrong value": {
			json:    `{"protocol": {"timeout": "soon"}}`,
			key:     "protocol",
			wantErr: true,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			var o Options
			assert.Nil(t, json.Unmarshal([]byte(tc.json), &o))
			var got conf
			err := o.ReadOptions(tc.key, &got)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			assert.Nil(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHandlerFunc(t *testing.T) {
	var called MsgType
	var h Handler = HandlerFunc(func(ctx context.Context, msg *CelerMsg) error {
		called = msg.Type
		return errors.ErrState
	})
	err := h.Handle(context.Background(), &CelerMsg{Type: MsgRevealSecret})
	assert.IsErr(t, errors.ErrState, err)
	assert.Equal(t, MsgRevealSecret, called)
}
