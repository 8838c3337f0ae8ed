package oktaclient

import "fmt"

func oktaSuccess(sessionToken string) string {
	return fmt.Sprintf(`{
  "expiresAt": "2015-11-03T10:15:57.000Z",
  "status": "SUCCESS",
  "sessionToken": "%s",
  "_embedded": {
    "user": {
      "id": "00ub0oNGTSWTBKOLGLNR",
      "profile": {
        "login": "dade.murphy@example.com",
        "firstName": "Dade",
        "lastName": "Murphy"
      }
    }
  }
}`, sessionToken)
}

// oktaMFARequired returns an authn response asking for MFA.
// factors: serialization of []Factor found at "._embedded.factors"
func oktaMFARequired(stateToken string, factors string) string {
	return fmt.Sprintf(`{
  "stateToken": "%s",
  "expiresAt": "2015-11-03T10:15:57.000Z",
  "status": "MFA_REQUIRED",
  "_embedded": {
    "factors": %s
  }
}`, stateToken, factors)
}

func oktaPushWaiting(stateToken string) string {
	return fmt.Sprintf(`{
  "stateToken": "%s",
  "status": "MFA_CHALLENGE",
  "factorResult": "%s"
}`, stateToken, FactorResultWaiting)
}

func oktaPushResult(stateToken string, result string) string {
	return fmt.Sprintf(`{
  "stateToken": "%s",
  "status": "MFA_CHALLENGE",
  "factorResult": "%s"
}`, stateToken, result)
}

const totpFactors = `[{
  "id": "ostfm3hPNYSOIOIVTQWY",
  "factorType": "token:software:totp",
  "provider": "GOOGLE"
}]`

const smsFactors = `[{
  "id": "sms193zUBEROPBNZKPPE",
  "factorType": "sms",
  "provider": "OKTA"
}]`

const pushFactors = `[{
  "id": "opfh52xcuft3J4uZc0g3",
  "factorType": "push",
  "provider": "OKTA"
}]`

const sessionCreated = `{
  "id": "102nPbpzcb6QYqHoCQbtwV4aQ",
  "login": "dade.murphy@example.com",
  "status": "ACTIVE"
}`

const authFailed = `{
  "errorCode": "E0000004",
  "errorSummary": "Authentication failed",
  "errorLink": "E0000004",
  "errorId": "oaeuHRrvMnuRga5UzpKIOhKpQ",
  "errorCauses": []
}`
