// Package scenario runs YAML request scripts through one cookie session.
//
// A scenario file looks like:
//
//	name: login flow
//	baseURL: https://api.example.com
//	vars:
//	  user: ada
//	steps:
//	  - name: login
//	    method: POST
//	    url: /login
//	    data: {user: "{{user}}", password: "{{$API_PASSWORD}}"}
//	    capture:
//	      token: body.token
//	    expect:
//	      - status == 200
//	      - cookie session exists
//	  - name: profile
//	    url: /me
//	    headers: {Authorization: "Bearer {{token}}"}
//	    expect:
//	      - body.name == ada
//
// Cookies set by one step are sent by every later step. Adjacent steps
// marked parallel run concurrently. Placeholders are resolved by
// package env.
package scenario
