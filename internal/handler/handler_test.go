package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/babelchat/babelchat/internal/config"
	"github.com/babelchat/babelchat/internal/hub"
	"github.com/babelchat/babelchat/internal/service/transcriber"
	"github.com/babelchat/babelchat/internal/service/translator"
)

func newTestRouter(asr *transcriber.Service) http.Handler {
	if asr == nil {
		asr = transcriber.New(config.TranscribeConfig{})
	}
	roomHub := hub.New(zerolog.Nop(), 0)
	return NewRouter(translator.Passthrough{}, asr, roomHub, zerolog.Nop())
}

func postJSON(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestTranslateSingle(t *testing.T) {
	router := newTestRouter(nil)

	rec := postJSON(t, router, "/api/translate", `{"text":"hola","targetLanguage":"en"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		TranslatedText string `json:"translatedText"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "hola", resp.TranslatedText)
}

func TestTranslateBatch(t *testing.T) {
	router := newTestRouter(nil)

	rec := postJSON(t, router, "/api/translate", `{"texts":["uno","dos"],"targetLanguage":"en"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		TranslatedTexts []string `json:"translatedTexts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, []string{"uno", "dos"}, resp.TranslatedTexts)
}

func TestTranslateRejectsBadInput(t *testing.T) {
	router := newTestRouter(nil)

	cases := map[string]string{
		"missing target": `{"text":"hola"}`,
		"missing text":   `{"targetLanguage":"en"}`,
		"garbage":        `{nope`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := postJSON(t, router, "/api/translate", body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func multipartAudio(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestTranscribeUnavailableWithoutUpstream(t *testing.T) {
	router := newTestRouter(nil)

	body, contentType := multipartAudio(t, "clip.webm", []byte("audio-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestTranscribeRequiresAudioField(t *testing.T) {
	router := newTestRouter(nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no audio here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTranscribeProxiesUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("audio")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "clip.webm", header.Filename)
		_ = json.NewEncoder(w).Encode(map[string]string{"transcription": "hello world"})
	}))
	defer upstream.Close()

	asr := transcriber.New(config.TranscribeConfig{UpstreamURL: upstream.URL, Timeout: 5})
	router := newTestRouter(asr)

	body, contentType := multipartAudio(t, "clip.webm", []byte("audio-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Transcription string `json:"transcription"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "hello world", resp.Transcription)
}

func TestTranscribeUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer upstream.Close()

	asr := transcriber.New(config.TranscribeConfig{UpstreamURL: upstream.URL, Timeout: 5})
	router := newTestRouter(asr)

	body, contentType := multipartAudio(t, "clip.webm", []byte("audio-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
}
