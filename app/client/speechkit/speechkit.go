package speechkit

import (
	"context"
	"drivechat/app/config"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/samber/do"
	"github.com/samber/oops"
	ycsdk "github.com/yandex-cloud/go-sdk"
	"github.com/yandex-cloud/go-sdk/iamkey"
)

const shutdownTimeout = 5 * time.Second

var _ do.Shutdownable = (*YandexSpeechKit)(nil)

type YandexSpeechKit struct {
	cfg config.Speech
	sdk *ycsdk.SDK
}

func NewClient(di *do.Injector) (*YandexSpeechKit, error) {
	ctx := do.MustInvoke[context.Context](di)
	cfg := do.MustInvoke[*config.Config](di)

	errBuilder := oops.In("speechkit").With("key_file", cfg.Speech.KeyFile)

	if !cfg.Speech.Enabled {
		return nil, errBuilder.Errorf("speech recognition is disabled")
	}

	keyBytes, err := os.ReadFile(cfg.Speech.KeyFile)
	if err != nil {
		return nil, errBuilder.Wrapf(err, "could not read service account key")
	}

	var key iamkey.Key
	if err = json.Unmarshal(keyBytes, &key); err != nil {
		return nil, errBuilder.Wrapf(err, "could not parse service account key")
	}

	creds, err := ycsdk.ServiceAccountKey(&key)
	if err != nil {
		return nil, errBuilder.Wrapf(err, "could not create service account credentials")
	}

	sdk, err := ycsdk.Build(ctx, ycsdk.Config{
		Credentials: creds,
	})
	if err != nil {
		return nil, errBuilder.Wrapf(err, "failed to create Yandex SDK")
	}

	slog.Info("Speech recognition enabled", slog.Any("languages", cfg.Speech.Languages))

	return &YandexSpeechKit{
		cfg: cfg.Speech,
		sdk: sdk,
	}, nil
}

// Start opens a recognition stream, Close on the handle releases it
func (y *YandexSpeechKit) Start(ctx context.Context) (*Handle, error) {
	ctx, cancel := context.WithCancel(ctx)

	client, err := y.sdk.AI().STTV3().Recognizer().RecognizeStreaming(ctx)
	if err != nil {
		cancel()
		return nil, oops.In("speechkit").Wrapf(err, "failed to open recognition stream")
	}

	return &Handle{
		client:    client,
		cancel:    cancel,
		languages: y.cfg.Languages,
	}, nil
}

func (y *YandexSpeechKit) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return y.sdk.Shutdown(ctx)
}
