package model

// PublicProfile はGoogleのユーザー情報レスポンスのうち、
// フロントエンドに公開するサブセットを表す。
// セッションごとに初回取得後メモ化される。
type PublicProfile struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}
