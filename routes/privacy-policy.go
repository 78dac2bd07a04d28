package routes

import (
	"fmt"
	"net/http"
)

const privacyPolicy = `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>Roomie Privacy Policy</title>
</head>
<body>
	<h1>Privacy Policy</h1>
	<p>Roomie matches people looking for a room with people offering one. To do that we store your profile, your approximate location as a geohash, and the likes, passes and messages you send.</p>
	<p>Your exact coordinates are never shown to other users; the feed only shows distance.</p>
	<p>Deleting your account removes your profile, your matches and conversations, your likes and passes, and every photo you uploaded.</p>
	<p>Contact us at <a href="mailto:privacy@roomie.app">privacy@roomie.app</a> for questions.</p>
</body>
</html>
`

// PrivacyPolicyHandler serves the Privacy Policy content
func PrivacyPolicyHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, privacyPolicy)
}
