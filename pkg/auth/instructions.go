package auth

import (
	"fmt"
	"strings"
)

// ShowCredentialGuide explains where the consumer key and secret come from
func ShowCredentialGuide() {
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println("API CREDENTIALS")
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println()
	fmt.Println("engagedl authenticates as an application with the client-credentials")
	fmt.Println("grant. It needs the consumer key and secret of an app that has access")
	fmt.Println("to the engagement API.")
	fmt.Println()
	fmt.Println("1. Open the developer portal and select your project's app.")
	fmt.Println("2. Go to 'Keys and tokens'.")
	fmt.Println("3. Under 'Consumer Keys', copy the API key and the API key secret.")
	fmt.Println()
	fmt.Println("With application-only authentication only the totals endpoint is")
	fmt.Println("available, for favorites, retweets and replies.")
	fmt.Println()
	fmt.Println("Credentials are kept in the system keyring when one is available and")
	fmt.Println("in an encrypted file otherwise. ENGAGEDL_CONSUMER_KEY and")
	fmt.Println("ENGAGEDL_CONSUMER_SECRET override both.")
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println()
}
