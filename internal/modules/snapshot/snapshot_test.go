package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	appcfg "github.com/replyflow/core/internal/config"
	"github.com/replyflow/core/internal/core/automation"
	"github.com/replyflow/core/internal/core/followup"
	"github.com/replyflow/core/internal/database/dbtest"
	automationmod "github.com/replyflow/core/internal/modules/automation"
	followupmod "github.com/replyflow/core/internal/modules/followup"
	"github.com/replyflow/core/internal/modules/flowgraph"
	gatingmod "github.com/replyflow/core/internal/modules/gating"
	"github.com/replyflow/core/internal/modules/postback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUploader struct {
	objects map[string][]byte
	fail    map[string]bool
}

func (m *memUploader) Upload(_ context.Context, key string, body []byte, contentType string) error {
	if contentType != "application/json" {
		return errors.New("unexpected content type " + contentType)
	}
	for prefix := range m.fail {
		if strings.HasPrefix(key, prefix) {
			return errors.New("bucket unavailable")
		}
	}
	m.objects[key] = body
	return nil
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "snapshots/u1/2026-01-02T03-04-05Z.json", ObjectKey("snapshots", "u1", at))
	assert.Equal(t, "a/b/u1/2026-01-02T03-04-05Z.json", ObjectKey("/a//b/", "u1", at))
}

func TestRunExportsEveryOwner(t *testing.T) {
	db := dbtest.New(t)
	pb := postback.NewService(db)
	fu := followupmod.NewService(db)
	flows := flowgraph.NewService(db)
	gates := gatingmod.NewService(gatingmod.NewStore(db), nil, time.Hour, nil, nil)
	autos := automationmod.NewService(db, pb, fu, flows, gates, nil)

	_, err := autos.Save("u1", automationmod.SaveInput{
		Automation: automation.Automation{
			Channel: automation.ChannelDM, Keywords: []string{"info"}, Message: "hola", Active: true,
			Button: &automation.Button{Type: automation.ButtonPostback, Title: "Sí", Payload: "GET_INFO", Response: "toma"},
		},
		FollowUps: []followup.Step{{SequenceOrder: 1, DelayHours: 3, Message: "¿y?", Active: true}},
	})
	require.NoError(t, err)
	_, err = autos.Save("u2", automationmod.SaveInput{Automation: automation.Automation{
		Channel: automation.ChannelDM, Message: "hey", Active: true,
	}})
	require.NoError(t, err)

	up := &memUploader{objects: map[string][]byte{}}
	svc := NewService(autos, flows, pb, fu, up, "/backups/", nil)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return at }

	require.NoError(t, svc.Run(context.Background()))
	require.Len(t, up.objects, 2)

	body, ok := up.objects["backups/u1/2026-01-02T03-04-05Z.json"]
	require.True(t, ok)
	var doc Document
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, "u1", doc.OwnerID)
	require.Len(t, doc.Automations, 1)
	assert.Len(t, doc.Automations[0].FollowUps, 1)
	assert.Equal(t, "toma", doc.Automations[0].Button.Response)
	require.Len(t, doc.Flows, 1)
	assert.Equal(t, "dm", doc.Flows[0].SourceType)
	assert.Contains(t, string(doc.Flows[0].Graph), `"autoresponder"`)
	require.Len(t, doc.Postbacks, 1)
	assert.Equal(t, "GET_INFO", doc.Postbacks[0].PayloadKey)

	up.objects = map[string][]byte{}
	up.fail = map[string]bool{"backups/u1/": true}
	err = svc.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, up.objects, 1, "other owners are still exported")
}

func TestNewS3UploaderRequiresCredentials(t *testing.T) {
	_, err := NewS3Uploader(appConfig("", "k", "s"))
	assert.Error(t, err)

	u, err := NewS3Uploader(appConfig("bucket", "k", "s"))
	require.NoError(t, err)
	assert.Equal(t, "bucket", u.bucket)
}

func appConfig(bucket, key, secret string) appcfg.SnapshotConfig {
	return appcfg.SnapshotConfig{
		Enable:          true,
		Bucket:          bucket,
		Region:          "us-east-1",
		Endpoint:        "minio:9000",
		AccessKeyID:     key,
		SecretAccessKey: secret,
	}
}
