// Package captcha renders captcha text into images for goVerify.
//
// [DigitRenderer] draws digit strings with github.com/dchest/captcha's
// distorted glyphs and encodes them as JPEG. It renders only the digits 0-9;
// configure the engine's captcha alphabet accordingly.
package captcha
