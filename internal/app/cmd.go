package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はニュース巡回ワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// Options は解析済みのコマンドラインオプション。
type Options struct {
	Command Command

	// Dev が真の場合、デバッグ用ルートを有効にする。
	Dev bool
}

// ParseCommand はコマンドライン引数からサブコマンドとフラグを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Options {
	opts := Options{Command: CommandServe}

	rest := args
	if len(args) > 0 {
		switch args[0] {
		case "serve":
			opts.Command = CommandServe
			rest = args[1:]
		case "worker":
			opts.Command = CommandWorker
			rest = args[1:]
		case "healthcheck":
			opts.Command = CommandHealthcheck
			rest = args[1:]
		}
	}

	for _, a := range rest {
		if a == "--dev" || a == "-dev" {
			opts.Dev = true
		}
	}

	return opts
}
