// Package dashboard provides typed access to the admin backend's resources:
// events, attendance, members, news and meeting minutes.
//
// Services validate their input before sending anything and translate a 404
// on list endpoints into an empty result.
package dashboard
