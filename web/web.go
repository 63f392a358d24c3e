// Package web はマップフロントエンドの静的アセットをバイナリに埋め込む。
package web

import "embed"

// Assets はルーターの "/*" で配信される静的アセット。
//
//go:embed index.html app.js style.css testdata.json
var Assets embed.FS
