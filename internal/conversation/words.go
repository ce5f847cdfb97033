package conversation

import "strings"

// commonWords is a small English vocabulary biased toward scheduling chat. A
// message containing any of these is never treated as keyboard mashing.
var commonWords = buildWordSet(`
a about after afternoon again ah all also am an and any anything anytime appointment appointments are as ask
at available availability away back be because been before best book booked booking but by bye call can
cancel cancelled change check checkup clean cleaning clinic come consult consultation could date day days
dentist do doctor does done down early earliest email evening exam for free friday from get give go good
got great have hello help hey hi hmm how i if im in insurance is it its just know last late later latest
let like look lunch make may maybe me modify monday month morning my name need new next no noon not now
number of off ok okay on one only open or other out patient phone please possible reschedule right same
saturday schedule see should slot slots so some something soon sorry sunday sure thank thanks that the
then there this thursday time times to today tomorrow tonight too tuesday two up us visit wait want was
we wednesday week weekend what when where which who why will with work would yeah yes yep you your
january february march april june july august september october november december
jan feb mar apr jun jul aug sep sept oct nov dec mon tue tues wed thu thur thurs fri sat sun
`)

// dateWords are tokens that name a day or month on their own.
var dateWords = buildWordSet(`
today tomorrow tonight yesterday weekend monday tuesday wednesday thursday friday saturday sunday
mon tue tues wed thu thur thurs fri sat sun
january february march april may june july august september october november december
jan feb mar apr jun jul aug sep sept oct nov dec
`)

// keyboardRows are the letter rows of a QWERTY layout.
var keyboardRows = []string{"qwertyuiop", "asdfghjkl", "zxcvbnm"}

func buildWordSet(list string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(list) {
		out[w] = struct{}{}
	}
	return out
}
